package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/facelab/internal/store"
)

// UploadHandler handles HTTP requests for upload records.
type UploadHandler struct {
	store *store.Store
}

// NewUploadHandler creates a new UploadHandler with the given store.
func NewUploadHandler(s *store.Store) *UploadHandler {
	return &UploadHandler{store: s}
}

type uploadResponse struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	CreatedAt    string `json:"created_at"`
}

type listUploadsResponse struct {
	Uploads []uploadResponse `json:"uploads"`
}

func toUploadResponse(u *store.Upload) uploadResponse {
	return uploadResponse{
		ID:           u.ID,
		OriginalName: u.OriginalName,
		StoredName:   u.StoredName,
		Path:         u.Path,
		Size:         u.Size,
		Width:        u.Width,
		Height:       u.Height,
		CreatedAt:    formatTime(u.CreatedAt),
	}
}

// ServeHTTP routes /api/uploads and /api/uploads/{id}.
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/uploads"), "/")
	if id == "" {
		h.list(w, r)
		return
	}
	h.get(w, r, id)
}

// list handles GET /api/uploads.
func (h *UploadHandler) list(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.store.Uploads().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list uploads")
		return
	}

	response := listUploadsResponse{
		Uploads: make([]uploadResponse, 0, len(uploads)),
	}
	for _, u := range uploads {
		response.Uploads = append(response.Uploads, toUploadResponse(u))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/uploads/{id}.
func (h *UploadHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.store.Uploads().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Upload not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get upload")
		return
	}

	writeJSON(w, http.StatusOK, toUploadResponse(u))
}

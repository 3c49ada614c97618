package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/facelab/internal/store"
)

// DefaultRunLimit is the number of runs listed when no limit is given.
const DefaultRunLimit = 50

// RunHandler handles HTTP requests for detection runs.
type RunHandler struct {
	store *store.Store
}

// NewRunHandler creates a new RunHandler with the given store.
func NewRunHandler(s *store.Store) *RunHandler {
	return &RunHandler{store: s}
}

type runResponse struct {
	ID           string  `json:"id"`
	SessionID    string  `json:"session_id"`
	Model        string  `json:"model"`
	SourceKind   string  `json:"source_kind"`
	SourceValue  string  `json:"source_value"`
	ScaleFactor  float64 `json:"scale_factor"`
	MinNeighbors int     `json:"min_neighbors"`
	Faces        int     `json:"faces"`
	CreatedAt    string  `json:"created_at"`
}

type listRunsResponse struct {
	Runs []runResponse `json:"runs"`
}

func toRunResponse(run *store.Run) runResponse {
	return runResponse{
		ID:           run.ID,
		SessionID:    run.SessionID,
		Model:        run.Model,
		SourceKind:   run.SourceKind,
		SourceValue:  run.SourceValue,
		ScaleFactor:  run.ScaleFactor,
		MinNeighbors: run.MinNeighbors,
		Faces:        run.Faces,
		CreatedAt:    formatTime(run.CreatedAt),
	}
}

// ServeHTTP routes /api/runs and /api/runs/stats.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	switch strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs"), "/") {
	case "":
		h.list(w, r)
	case "stats":
		h.stats(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// list handles GET /api/runs?limit=N&session=ID.
func (h *RunHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	var (
		runs []*store.Run
		err  error
	)
	if id := r.URL.Query().Get("session"); id != "" {
		runs, err = h.store.Runs().ListBySession(id)
		if err == nil && limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}
	} else {
		runs, err = h.store.Runs().List(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	response := listRunsResponse{
		Runs: make([]runResponse, 0, len(runs)),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, response)
}

// stats handles GET /api/runs/stats.
func (h *RunHandler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Runs().Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute run statistics")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

package server

import (
	"errors"
	"net/http"

	"github.com/ayusman/facelab/internal/session"
	"github.com/ayusman/facelab/internal/store"
)

// maxUploadSize bounds the multipart body of POST /api/upload.
const maxUploadSize = 32 << 20

// handleUpload stores a multipart "file" and answers with its absolute path,
// ready to be used as the value of a file load.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		msg := "missing file field"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "file too large"
		}
		writeEnvelope(w, http.StatusBadRequest, envelope{Status: statusError, Msg: msg, Kind: session.KindInvalidArgument.String()})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeEnvelope(w, http.StatusBadRequest, envelope{Status: statusError, Msg: "no file selected", Kind: session.KindInvalidArgument.String()})
		return
	}

	res, err := s.config.Uploads.Save(header.Filename, file)
	if err != nil {
		s.log.WithError(err).WithField("file", header.Filename).Warn("upload rejected")
		writeEnvelope(w, http.StatusBadRequest, failure(err))
		return
	}

	if s.config.Store != nil {
		rec := &store.Upload{
			OriginalName: res.OriginalName,
			StoredName:   res.StoredName,
			Path:         res.Path,
			Size:         res.Size,
			Width:        res.Width,
			Height:       res.Height,
		}
		if err := s.config.Store.Uploads().Create(rec); err != nil {
			s.log.WithError(err).Warn("failed to record upload")
		}
	}

	env := success("file uploaded")
	env.Path = res.Path
	writeEnvelope(w, http.StatusOK, env)
}

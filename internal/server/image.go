package server

import (
	"net/http"
	"strconv"

	"github.com/ayusman/facelab/internal/session"
)

// handleImage serves the session's final image as JPEG bytes.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeEnvelope(w, sessionStatus(err), failure(err))
		return
	}

	data, err := sess.FinalJPEG()
	if err != nil {
		status := http.StatusInternalServerError
		if session.KindOf(err) == session.KindSequence {
			status = http.StatusConflict
		}
		writeEnvelope(w, status, failure(err))
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayusman/facelab/internal/session"
)

const (
	// SessionHeader carries the session id chosen by the client.
	SessionHeader = "X-Session-ID"
	// SessionCookie is consulted when the header is absent.
	SessionCookie = "facelab_session"
)

// sessionFor returns the session selected by the request: the SessionHeader,
// then the SessionCookie, else the shared default session.
func (s *Server) sessionFor(r *http.Request) (*session.Session, error) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = strings.TrimSpace(c.Value)
		}
	}
	if id == "" {
		id = session.DefaultID
	}

	if !session.ValidID(id) {
		return nil, &session.Error{
			Kind: session.KindInvalidArgument,
			Op:   "request",
			Msg:  fmt.Sprintf("invalid session id %q", id),
		}
	}
	return s.config.Sessions.Open(id)
}

// sessionStatus is the HTTP status for an error from sessionFor.
func sessionStatus(err error) int {
	if errors.Is(err, session.ErrSessionLimit) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

// handleSessions handles POST /api/sessions and DELETE /api/sessions/{id}.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions"), "/")

	switch {
	case id == "" && r.Method == http.MethodPost:
		sess, err := s.config.Sessions.Create()
		if err != nil {
			writeEnvelope(w, sessionStatus(err), failure(err))
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		w.Header().Set(SessionHeader, sess.ID())

		env := success("session created")
		env.Session = sess.ID()
		env.Stage = sess.Stage().String()
		writeEnvelope(w, http.StatusCreated, env)

	case id != "" && r.Method == http.MethodDelete:
		if id == session.DefaultID {
			s.config.Sessions.Get(session.DefaultID).Reset()
			writeEnvelope(w, http.StatusOK, success("default session reset"))
			return
		}
		if !s.config.Sessions.Delete(id) {
			writeEnvelope(w, http.StatusNotFound, envelope{Status: statusError, Msg: "session not found"})
			return
		}
		writeEnvelope(w, http.StatusOK, success("session deleted"))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

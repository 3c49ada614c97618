package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/facelab/internal/codec"
	"github.com/ayusman/facelab/internal/session"
	"github.com/ayusman/facelab/internal/upload"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// envelope is the JSON body of every workflow response.
type envelope struct {
	Status  string `json:"status"`
	Msg     string `json:"msg,omitempty"`
	Image   string `json:"image,omitempty"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Faces   any    `json:"faces,omitempty"`
	Path    string `json:"path,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Session string `json:"session,omitempty"`
}

func success(msg string) envelope {
	return envelope{Status: statusSuccess, Msg: msg}
}

func failure(err error) envelope {
	return envelope{Status: statusError, Msg: err.Error(), Kind: errorKind(err).String()}
}

func intPtr(n int) *int {
	return &n
}

// errorKind classifies err for the envelope's kind field.
func errorKind(err error) session.Kind {
	if k := session.KindOf(err); k != session.KindUnknown {
		return k
	}
	switch {
	case errors.Is(err, codec.ErrDecode):
		return session.KindDecode
	case errors.Is(err, codec.ErrNotFound):
		return session.KindNotFound
	case errors.Is(err, errMalformedParams), errors.Is(err, upload.ErrEmptyFile), errors.Is(err, upload.ErrNoName):
		return session.KindInvalidArgument
	}
	return session.KindUnknown
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

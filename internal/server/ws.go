package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/facelab/internal/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsMaxMessage = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the block editor is served from other origins
	},
}

// wsRequest is one operation sent over the socket, e.g.
// {"op": "step4_detect", "params": {"scale": 1.2}}.
type wsRequest struct {
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params"`
}

type wsResponse struct {
	Op string `json:"op"`
	envelope
}

// SessionSocket runs workflow operations received over a WebSocket.
// Every connection owns a private session that is deleted when it closes.
type SessionSocket struct {
	server *Server
}

// NewSessionSocket creates a SessionSocket backed by the server's registry and step table.
func NewSessionSocket(s *Server) *SessionSocket {
	return &SessionSocket{server: s}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *SessionSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.server.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	registry := h.server.config.Sessions
	sess, err := registry.Create()
	if err != nil {
		h.server.log.WithError(err).Warn("websocket session refused")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		return
	}
	defer registry.Delete(sess.ID())

	log := h.server.log.WithFields(logrus.Fields{
		"session": sess.ID(),
		"remote":  r.RemoteAddr,
	})
	log.Info("websocket session opened")
	defer log.Info("websocket session closed")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("websocket read failed")
			}
			return
		}

		resp := h.handle(r.Context(), sess, msg)
		resp.Session = sess.ID()
		if resp.Stage == "" {
			resp.Stage = sess.Stage().String()
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(resp); err != nil {
			log.WithError(err).Warn("websocket write failed")
			return
		}
	}
}

func (h *SessionSocket) handle(ctx context.Context, sess *session.Session, msg []byte) wsResponse {
	var req wsRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return wsResponse{envelope: failure(errMalformedParams)}
	}

	fn, ok := h.server.steps[req.Op]
	if !ok {
		return wsResponse{Op: req.Op, envelope: envelope{
			Status: statusError,
			Msg:    "unknown operation " + req.Op,
			Kind:   session.KindInvalidArgument.String(),
		}}
	}

	p, err := parseParams(req.Params)
	if err != nil {
		return wsResponse{Op: req.Op, envelope: failure(err)}
	}

	return wsResponse{Op: req.Op, envelope: h.server.runStep(ctx, sess, fn, p)}
}

// Package server provides the HTTP transport for the face detection workflow.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/facelab/internal/server/api"
	"github.com/ayusman/facelab/internal/session"
	"github.com/ayusman/facelab/internal/store"
	"github.com/ayusman/facelab/internal/upload"
)

// ShutdownTimeout bounds the graceful shutdown in ListenAndServe.
const ShutdownTimeout = 10 * time.Second

// Config holds the server configuration.
type Config struct {
	Sessions *session.Registry
	Store    *store.Store
	Uploads  *upload.Storage

	// EnableUpload serves POST /api/upload; it also needs Uploads.
	EnableUpload bool
	// EnablePipeline serves POST /api/face/detect.
	EnablePipeline bool

	StaticDir string
	Logger    logrus.FieldLogger
}

// Server represents the HTTP server.
type Server struct {
	config  Config
	log     logrus.FieldLogger
	mux     *http.ServeMux
	handler http.Handler
	steps   map[string]stepFunc
	start   time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	s := &Server{
		config: config,
		log:    config.Logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	s.handler = s.recoverer(s.requestLogger(cors(s.mux)))
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Sessions != nil {
		s.steps = s.stepTable()
		for name, fn := range s.steps {
			s.mux.Handle("/api/"+name, s.stepHandler(fn))
		}

		s.mux.HandleFunc("/api/sessions", s.handleSessions)
		s.mux.HandleFunc("/api/sessions/", s.handleSessions)
		s.mux.HandleFunc("/api/image", s.handleImage)
		s.mux.Handle("/api/ws", NewSessionSocket(s))
	}

	if s.config.EnableUpload && s.config.Uploads != nil {
		s.mux.HandleFunc("/api/upload", s.handleUpload)
	}

	if s.config.Store != nil {
		uploads := api.NewUploadHandler(s.config.Store)
		runs := api.NewRunHandler(s.config.Store)
		s.mux.Handle("/api/uploads", uploads)
		s.mux.Handle("/api/uploads/", uploads)
		s.mux.Handle("/api/runs", runs)
		s.mux.Handle("/api/runs/", runs)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	} else {
		s.mux.HandleFunc("/", s.handleIndex)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleIndex answers GET / when no static files are served.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Face Detection Backend is Running!"))
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Sessions != nil {
		response["sessions"] = s.config.Sessions.Len()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

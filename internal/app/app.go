// Package app wires the face detection service together: storage, the session
// registry, the HTTP server and the idle-session janitor.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/facelab/internal/capture"
	"github.com/ayusman/facelab/internal/config"
	"github.com/ayusman/facelab/internal/detector"
	"github.com/ayusman/facelab/internal/server"
	"github.com/ayusman/facelab/internal/session"
	"github.com/ayusman/facelab/internal/store"
	"github.com/ayusman/facelab/internal/upload"
)

// Options replaces collaborators that are normally built from the config.
type Options struct {
	Engines detector.Loader
	Cameras capture.Opener
}

// App is the running service.
type App struct {
	config   *config.Config
	log      logrus.FieldLogger
	store    *store.Store
	uploads  *upload.Storage
	sessions *session.Registry
	server   *server.Server

	closeOnce sync.Once
}

// New opens storage and builds the server described by cfg.
func New(cfg *config.Config, log logrus.FieldLogger, opts Options) (*App, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	var uploads *upload.Storage
	if cfg.UploadEnabled() {
		uploads, err = upload.NewStorage(cfg.UploadDir)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	engines := opts.Engines
	if engines == nil {
		engines = detector.NewLoader(cfg.CascadeDirs...)
	}

	sessions := session.NewRegistry(session.Config{
		Engines:        engines,
		Cameras:        opts.Cameras,
		CaptureTimeout: cfg.CaptureTimeout,
		Recorder:       st.Runs(),
		Logger:         log,
		MaxSessions:    cfg.MaxSessions,
	})

	srv := server.New(server.Config{
		Sessions:       sessions,
		Store:          st,
		Uploads:        uploads,
		EnableUpload:   cfg.UploadEnabled(),
		EnablePipeline: cfg.PipelineEnabled(),
		StaticDir:      cfg.StaticDir,
		Logger:         log,
	})

	return &App{
		config:   cfg,
		log:      log,
		store:    st,
		uploads:  uploads,
		sessions: sessions,
		server:   srv,
	}, nil
}

// Handler returns the HTTP handler of the service.
func (a *App) Handler() http.Handler {
	return a.server
}

// Sessions returns the session registry.
func (a *App) Sessions() *session.Registry {
	return a.sessions
}

// Store returns the database.
func (a *App) Store() *store.Store {
	return a.store
}

// Run serves HTTP and sweeps idle sessions until ctx is cancelled, then
// releases every resource.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sessions.Run(ctx, a.config.SweepInterval, a.config.SessionIdle)
	}()

	a.log.WithFields(logrus.Fields{
		"addr":    a.config.Addr,
		"variant": a.config.Variant,
	}).Info("starting server")

	err := a.server.ListenAndServe(ctx, a.config.Addr)
	cancel()
	wg.Wait()

	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

// Close releases all sessions and closes the database. It is safe to call more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.sessions.Close()
		err = a.store.Close()
	})
	return err
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/facelab/internal/app"
	"github.com/ayusman/facelab/internal/config"
	"github.com/ayusman/facelab/internal/logging"
	"github.com/ayusman/facelab/internal/tray"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer closer.Close()

	log.Info("FaceLab - step-by-step face detection")

	if cfg.StaticDir == "" {
		cfg.StaticDir = findWebDir(cfg.DataDir)
	}
	if cfg.StaticDir != "" {
		log.WithField("dir", cfg.StaticDir).Info("serving static files")
	}

	a, err := app.New(cfg, log, app.Options{})
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Tray {
		if err := a.Run(ctx); err != nil {
			log.WithError(err).Fatal("server failed")
		}
		return
	}

	runWithTray(ctx, stop, a, cfg, log)
}

// runWithTray serves in the background while the tray owns the main goroutine.
func runWithTray(ctx context.Context, stop context.CancelFunc, a *app.App, cfg *config.Config, log *logrus.Logger) {
	t := tray.New()
	t.SessionCounter(a.Sessions().Len)
	t.OnOpen(func() {
		if err := openBrowser(browserURL(cfg.Addr)); err != nil {
			log.WithError(err).Warn("failed to open browser")
		}
	})
	t.OnResetAll(func() {
		a.Sessions().ResetAll()
		log.Info("all sessions reset from tray")
	})
	t.OnQuit(stop)

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
		t.Quit()
	}()
	go t.Watch(ctx, 2*time.Second)

	t.Run()
	stop()

	if err := <-done; err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

// browserURL turns a listen address into a URL a local browser can reach.
func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	if dataDir == "" {
		return ""
	}
	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}

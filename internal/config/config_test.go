package config

import (
	"path/filepath"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, env(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.Variant != VariantFull || !cfg.UploadEnabled() || !cfg.PipelineEnabled() {
		t.Errorf("default variant = %q, want full with both endpoints", cfg.Variant)
	}
	if cfg.CaptureTimeout != 5*time.Second {
		t.Errorf("CaptureTimeout = %v, want 5s", cfg.CaptureTimeout)
	}
	if cfg.DBPath != filepath.Join(cfg.DataDir, "facelab.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.UploadDir != filepath.Join(cfg.DataDir, "uploads") {
		t.Errorf("UploadDir = %q", cfg.UploadDir)
	}
}

func TestLoad_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		wantAddr string
	}{
		{"PORT", nil, map[string]string{"PORT": "5000"}, ":5000"},
		{"prefixed env beats PORT", nil, map[string]string{"PORT": "5000", "FACELAB_ADDR": "127.0.0.1:9000"}, "127.0.0.1:9000"},
		{"flag beats env", []string{"-addr", ":7000"}, map[string]string{"FACELAB_ADDR": ":9000"}, ":7000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.args, env(tt.env))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Addr != tt.wantAddr {
				t.Errorf("Addr = %q, want %q", cfg.Addr, tt.wantAddr)
			}
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(
		[]string{"-variant", "BASIC", "-cascade-dir", "/opt/cascades", "-session-idle", "5m", "-tray"},
		env(map[string]string{
			"FACELAB_DATA_DIR":        dir,
			"FACELAB_CAPTURE_TIMEOUT": "2s",
			"FACELAB_LOG_FORMAT":      "json",
			"FACELAB_MAX_SESSIONS":    "12",
		}),
	)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Variant != VariantBasic || cfg.UploadEnabled() || cfg.PipelineEnabled() {
		t.Errorf("variant = %q, want basic without optional endpoints", cfg.Variant)
	}
	if cfg.CascadeDirs[0] != "/opt/cascades" {
		t.Errorf("CascadeDirs[0] = %q, want the flag directory first", cfg.CascadeDirs[0])
	}
	if cfg.CaptureTimeout != 2*time.Second || cfg.SessionIdle != 5*time.Minute {
		t.Errorf("timeouts = %v, %v", cfg.CaptureTimeout, cfg.SessionIdle)
	}
	if cfg.DBPath != filepath.Join(dir, "facelab.db") {
		t.Errorf("DBPath = %q, want under %q", cfg.DBPath, dir)
	}
	if cfg.MaxSessions != 12 {
		t.Errorf("MaxSessions = %d, want 12", cfg.MaxSessions)
	}
	if cfg.LogFormat != "json" || !cfg.Tray {
		t.Errorf("LogFormat = %q, Tray = %v", cfg.LogFormat, cfg.Tray)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"variant", []string{"-variant", "deluxe"}, nil},
		{"log level", []string{"-log-level", "chatty"}, nil},
		{"timeout", []string{"-capture-timeout", "0s"}, nil},
		{"env duration", nil, map[string]string{"FACELAB_SESSION_IDLE": "soon"}},
		{"env bool", nil, map[string]string{"FACELAB_TRAY": "maybe"}},
		{"max sessions", []string{"-max-sessions", "0"}, nil},
		{"env max sessions", nil, map[string]string{"FACELAB_MAX_SESSIONS": "lots"}},
		{"unknown flag", []string{"-nope"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.args, env(tt.env)); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

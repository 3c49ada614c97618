// Package config loads the service configuration from defaults, environment
// variables and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/facelab/internal/detector"
	"github.com/ayusman/facelab/internal/session"
)

// Variant selects which optional endpoints the service exposes.
type Variant string

const (
	// VariantBasic serves the step endpoints only.
	VariantBasic Variant = "basic"
	// VariantFull adds the upload and pipeline endpoints.
	VariantFull Variant = "full"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "FACELAB_"

// Config holds the service configuration.
type Config struct {
	Addr      string
	Variant   Variant
	DataDir   string
	DBPath    string
	UploadDir string
	StaticDir string
	// CascadeDirs are searched, in order, for classifier files named without a path.
	CascadeDirs []string

	CaptureTimeout time.Duration
	SessionIdle    time.Duration
	SweepInterval  time.Duration
	// MaxSessions caps live client sessions; the shared default session is not counted.
	MaxSessions int

	LogLevel  string
	LogFormat string
	LogFile   string

	Tray bool
}

// Default returns the configuration used when nothing is overridden.
// Data lives under ~/.facelab, falling back to ./.facelab without a home directory.
func Default() *Config {
	dataDir := ".facelab"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".facelab")
	}

	return &Config{
		Addr:           ":8080",
		Variant:        VariantFull,
		DataDir:        dataDir,
		CascadeDirs:    detector.SystemCascadeDirs(),
		CaptureTimeout: 5 * time.Second,
		SessionIdle:    30 * time.Minute,
		SweepInterval:  time.Minute,
		MaxSessions:    session.DefaultMaxSessions,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load builds a Config from defaults, the environment as seen through getenv,
// and args (without the program name).
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if getenv == nil {
		getenv = os.Getenv
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("facelab", flag.ContinueOnError)
	cfg.bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.fillPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if port := getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}

	strs := map[string]*string{
		"ADDR":       &c.Addr,
		"DATA_DIR":   &c.DataDir,
		"DB":         &c.DBPath,
		"UPLOAD_DIR": &c.UploadDir,
		"STATIC_DIR": &c.StaticDir,
		"LOG_LEVEL":  &c.LogLevel,
		"LOG_FORMAT": &c.LogFormat,
		"LOG_FILE":   &c.LogFile,
	}
	for key, dst := range strs {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	if v := getenv(EnvPrefix + "VARIANT"); v != "" {
		c.Variant = Variant(strings.ToLower(v))
	}
	if v := getenv(EnvPrefix + "CASCADE_DIRS"); v != "" {
		c.CascadeDirs = append(filepath.SplitList(v), c.CascadeDirs...)
	}

	durations := map[string]*time.Duration{
		"CAPTURE_TIMEOUT": &c.CaptureTimeout,
		"SESSION_IDLE":    &c.SessionIdle,
		"SWEEP_INTERVAL":  &c.SweepInterval,
	}
	for key, dst := range durations {
		v := getenv(EnvPrefix + key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}

	if v := getenv(EnvPrefix + "MAX_SESSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_SESSIONS: %w", EnvPrefix, err)
		}
		c.MaxSessions = n
	}

	if v := getenv(EnvPrefix + "TRAY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sTRAY: %w", EnvPrefix, err)
		}
		c.Tray = b
	}
	return nil
}

func (c *Config) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.Func("variant", "service variant: basic or full (default "+string(c.Variant)+")", func(s string) error {
		c.Variant = Variant(strings.ToLower(s))
		return nil
	})
	fs.StringVar(&c.DataDir, "data", c.DataDir, "data directory")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path (default <data>/facelab.db)")
	fs.StringVar(&c.UploadDir, "uploads", c.UploadDir, "upload directory (default <data>/uploads)")
	fs.StringVar(&c.StaticDir, "web", c.StaticDir, "directory of static web files")
	fs.Func("cascade-dir", "extra directory searched for classifier files (repeatable)", func(s string) error {
		c.CascadeDirs = append([]string{s}, c.CascadeDirs...)
		return nil
	})
	fs.DurationVar(&c.CaptureTimeout, "capture-timeout", c.CaptureTimeout, "camera snapshot timeout")
	fs.DurationVar(&c.SessionIdle, "session-idle", c.SessionIdle, "evict sessions idle for longer than this")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "idle session sweep interval")
	fs.IntVar(&c.MaxSessions, "max-sessions", c.MaxSessions, "maximum number of live client sessions")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "also write logs to this file")
	fs.BoolVar(&c.Tray, "tray", c.Tray, "show a system tray icon")
}

func (c *Config) fillPaths() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "facelab.db")
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.DataDir, "uploads")
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Variant {
	case VariantBasic, VariantFull:
	default:
		return fmt.Errorf("unknown variant %q, want basic or full", c.Variant)
	}
	if c.Addr == "" {
		return errors.New("listen address is empty")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.CaptureTimeout <= 0 {
		return errors.New("capture timeout must be positive")
	}
	if c.SessionIdle <= 0 || c.SweepInterval <= 0 {
		return errors.New("session idle timeout and sweep interval must be positive")
	}
	if c.MaxSessions <= 0 {
		return errors.New("max sessions must be positive")
	}
	return nil
}

// UploadEnabled reports whether the upload endpoint is served.
func (c *Config) UploadEnabled() bool {
	return c.Variant == VariantFull
}

// PipelineEnabled reports whether the pipeline endpoint is served.
func (c *Config) PipelineEnabled() bool {
	return c.Variant == VariantFull
}

package detector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Model identifiers understood by ResourceLoader.
const (
	// DefaultModel is the frontal face cascade shipped with OpenCV.
	DefaultModel = "haarcascade_frontalface_default.xml"
	// PigoModel is the file name of the pigo face cascade.
	PigoModel = "facefinder"
	// PigoPrefix selects the pigo backend for the identifier that follows it.
	PigoPrefix = "pigo:"
)

// Backend names the engine implementation a model identifier resolves to.
type Backend string

const (
	BackendCascade Backend = "cascade"
	BackendPigo    Backend = "pigo"
)

// SystemCascadeDirs lists the directories OpenCV packages install their cascades into.
func SystemCascadeDirs() []string {
	return []string{
		"/usr/share/opencv4/haarcascades",
		"/usr/local/share/opencv4/haarcascades",
		"/usr/share/opencv/haarcascades",
		"/usr/local/share/opencv/haarcascades",
		"/opt/homebrew/share/opencv4/haarcascades",
	}
}

// ResourceLoader resolves model identifiers against a list of resource
// directories before falling back to treating them as plain paths.
type ResourceLoader struct {
	dirs []string
}

// NewLoader creates a ResourceLoader that searches dirs and then the system cascade directories.
func NewLoader(dirs ...string) *ResourceLoader {
	all := make([]string, 0, len(dirs)+len(SystemCascadeDirs()))
	for _, d := range dirs {
		if d != "" {
			all = append(all, d)
		}
	}
	all = append(all, SystemCascadeDirs()...)
	return &ResourceLoader{dirs: all}
}

// Dirs returns the resource directories in search order.
func (l *ResourceLoader) Dirs() []string {
	return l.dirs
}

// Resolve maps identifier to a file path and backend without loading it.
func (l *ResourceLoader) Resolve(identifier string) (string, Backend, error) {
	name, backend := parseIdentifier(identifier)

	if !filepath.IsAbs(name) {
		for _, dir := range l.dirs {
			candidate := filepath.Join(dir, name)
			if isFile(candidate) {
				return candidate, backend, nil
			}
		}
	}

	if isFile(name) {
		return name, backend, nil
	}

	return "", backend, fmt.Errorf("%w: model %q not found", ErrResourceLoad, identifier)
}

// Load resolves identifier and constructs the matching engine.
func (l *ResourceLoader) Load(identifier string) (Engine, error) {
	path, backend, err := l.Resolve(identifier)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendPigo:
		return NewPigoEngine(path)
	default:
		return NewCascadeEngine(path)
	}
}

func parseIdentifier(identifier string) (string, Backend) {
	name := strings.TrimSpace(identifier)

	switch {
	case name == "" || name == "default":
		return DefaultModel, BackendCascade
	case name == "pigo":
		return PigoModel, BackendPigo
	case strings.HasPrefix(name, PigoPrefix):
		name = strings.TrimPrefix(name, PigoPrefix)
		if name == "" {
			name = PigoModel
		}
		return name, BackendPigo
	case filepath.Base(name) == PigoModel:
		return name, BackendPigo
	}

	return name, BackendCascade
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

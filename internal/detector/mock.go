package detector

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockEngine is a test implementation of the Engine interface.
// It allows tests to control the detection results.
type MockEngine struct {
	mu     sync.Mutex
	boxes  []Box
	err    error
	calls  []Params
	closed bool
}

// NewMockEngine creates a MockEngine that reports the given boxes.
func NewMockEngine(boxes ...Box) *MockEngine {
	return &MockEngine{boxes: boxes}
}

// SetBoxes sets the boxes that will be returned by Detect.
func (m *MockEngine) SetBoxes(boxes []Box) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxes = boxes
}

// SetError sets the error that will be returned by Detect.
func (m *MockEngine) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect validates its input like a real engine and returns the configured boxes.
func (m *MockEngine) Detect(gray gocv.Mat, params Params) ([]Box, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	if err := validate(gray, params); err != nil {
		return nil, err
	}

	out := make([]Box, len(m.boxes))
	copy(out, m.boxes)
	return out, nil
}

// Calls returns the parameters of every Detect call so far.
func (m *MockEngine) Calls() []Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Params(nil), m.calls...)
}

// Name identifies the mock.
func (m *MockEngine) Name() string {
	return "mock"
}

// Close marks the engine closed.
func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockEngine) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockLoader hands out a fixed engine for known identifiers.
type MockLoader struct {
	mu      sync.Mutex
	engines map[string]Engine
	loads   []string
}

// NewMockLoader creates an empty MockLoader; unknown identifiers fail with ErrResourceLoad.
func NewMockLoader() *MockLoader {
	return &MockLoader{engines: make(map[string]Engine)}
}

// Register makes identifier resolve to engine.
func (l *MockLoader) Register(identifier string, engine Engine) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.engines[identifier] = engine
}

// Load returns the registered engine for identifier.
func (l *MockLoader) Load(identifier string) (Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loads = append(l.loads, identifier)
	engine, ok := l.engines[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: model %q not found", ErrResourceLoad, identifier)
	}
	return engine, nil
}

// Loads returns every identifier passed to Load.
func (l *MockLoader) Loads() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.loads...)
}

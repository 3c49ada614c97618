package session

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultID names the shared session used by clients that do not send an id.
const DefaultID = "default"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrSessionLimit is returned when creating a session would exceed Config.MaxSessions.
var ErrSessionLimit = errors.New("session limit reached")

// ValidID reports whether id is acceptable as a client-supplied session id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Registry owns the sessions of all connected clients.
type Registry struct {
	cfg      Config
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry whose sessions share cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, creating it on first use regardless of
// MaxSessions. The empty id maps to DefaultID.
func (r *Registry) Get(id string) *Session {
	if id == "" {
		id = DefaultID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := New(id, r.cfg)
	r.sessions[id] = s
	return s
}

// Lookup returns the session for id without creating one.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Open returns the session for id like Get, but refuses to create a new one
// once MaxSessions client sessions are live. The default session is always
// available and does not count towards the limit.
func (r *Registry) Open(id string) (*Session, error) {
	if id == "" || id == DefaultID {
		return r.Get(DefaultID), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	if r.clientSessions() >= r.cfg.MaxSessions {
		return nil, ErrSessionLimit
	}
	s := New(id, r.cfg)
	r.sessions[id] = s
	return s, nil
}

// clientSessions counts live sessions other than the default one. r.mu must be held.
func (r *Registry) clientSessions() int {
	n := len(r.sessions)
	if _, ok := r.sessions[DefaultID]; ok {
		n--
	}
	return n
}

// Create registers a new session under a random id.
func (r *Registry) Create() (*Session, error) {
	return r.Open(uuid.New().String())
}

// Delete releases and removes the session for id.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// ResetAll resets every session without removing it.
func (r *Registry) ResetAll() {
	for _, s := range r.snapshot() {
		s.Reset()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than maxIdle and returns how many were removed.
// The default session is kept. Idle checks never wait on a busy session.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	var stale []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if id == DefaultID {
			continue
		}
		if s.LastUsed().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		r.cfg.Logger.WithField("evicted", len(stale)).Info("idle sessions released")
	}
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}

// Close releases every session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

func (r *Registry) snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrShuttingDown    = errors.New("server is shutting down")
)

const (
	ReasonDisconnect = "disconnect"
	ReasonIdle       = "idle"
	ReasonClosed     = "closed"
	ReasonShutdown   = "shutdown"
)

// Registry holds the sessions that outlive a single request. Removal closes
// the session's sink best-effort and then reports the session to onRemove.
type Registry struct {
	idleTimeout time.Duration
	onRemove    func(s *Session, reason string)

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(idleTimeout time.Duration, onRemove func(s *Session, reason string)) *Registry {
	return &Registry{
		idleTimeout: idleTimeout,
		onRemove:    onRemove,
		sessions:    make(map[string]*Session),
	}
}

func (r *Registry) Create(id, transport string, sink Sink) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return nil, ErrSessionExists
	}
	s := newSession(id, transport, sink)
	r.sessions[id] = s
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Holds reports whether s is still the session registered under its id.
func (r *Registry) Holds(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[s.ID] == s
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) Remove(id, reason string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if ok {
		r.teardown(s, reason)
	}
	return ok
}

// RemoveSession removes s only if it is still the session registered under
// its id, so a late removal cannot evict a newer session reusing the id.
func (r *Registry) RemoveSession(s *Session, reason string) bool {
	r.mu.Lock()
	current, ok := r.sessions[s.ID]
	ok = ok && current == s
	if ok {
		delete(r.sessions, s.ID)
	}
	r.mu.Unlock()
	if ok {
		r.teardown(s, reason)
	}
	return ok
}

// Sweep evicts every session idle for longer than the idle timeout as of now
// and returns how many were evicted.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if now.Sub(s.LastActivity()) > r.idleTimeout {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		slog.Info("evicting idle session", "session_id", s.ID, "transport", s.Transport, "idle", now.Sub(s.LastActivity()))
		r.teardown(s, ReasonIdle)
	}
	return len(expired)
}

// RemoveAll evicts every session, used on shutdown.
func (r *Registry) RemoveAll(reason string) int {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range all {
		r.teardown(s, reason)
	}
	return len(all)
}

// RunReaper sweeps every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("idle reaper started", "interval", interval, "idle_timeout", r.idleTimeout)
	for {
		select {
		case <-ctx.Done():
			slog.Info("idle reaper stopped")
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				slog.Info("idle sweep finished", "evicted", n, "remaining", r.Len())
			}
		}
	}
}

func (r *Registry) teardown(s *Session, reason string) {
	if err := s.sink.Close(); err != nil {
		slog.Debug("ignoring sink close error", "session_id", s.ID, "reason", reason, "error", err)
	}
	if r.onRemove != nil {
		r.onRemove(s, reason)
	}
}

package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/brokerchat/internal/metrics"
)

// Registry tracks open sessions and expires the ones nobody touches.
type Registry struct {
	cfg SessionConfig
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(cfg SessionConfig, ttl time.Duration) *Registry {
	if cfg.Events == nil {
		cfg.Events = noopEvents{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg:      cfg,
		ttl:      ttl,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// ResponderKind names the response source new sessions use.
func (r *Registry) ResponderKind() string {
	if r.cfg.Responder == nil {
		return ""
	}
	return r.cfg.Responder.Kind()
}

func (r *Registry) Create(mode Mode) *Session {
	s := NewSession(r.cfg, mode)

	r.mu.Lock()
	r.sessions[s.id] = s
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.SetActiveSessions(n)
	r.cfg.Events.SessionOpened(s.id, s.Mode())
	return s
}

func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	if ok {
		// Touch before releasing so a concurrent Sweep sees the new activity.
		s.touch()
	}
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// Close drops the session. A pending reply still settles on the detached
// session and is then discarded with it.
func (r *Registry) Close(id uuid.UUID) error {
	return r.remove(id, "closed")
}

func (r *Registry) remove(id uuid.UUID, reason string) error {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	metrics.SetActiveSessions(n)
	r.cfg.Events.SessionClosed(id, reason)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the TTL. Pending sessions are kept.
// Selection and removal happen under one write lock.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.cfg.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired []uuid.UUID
	for id, s := range r.sessions {
		last, pending := s.idleSince()
		if !pending && last.Before(cutoff) {
			expired = append(expired, id)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}
	metrics.SetActiveSessions(n)
	for _, id := range expired {
		r.cfg.Events.SessionClosed(id, "expired")
	}
	if r.cfg.Logger != nil {
		r.cfg.Logger.Info("expired idle sessions", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps on every interval tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

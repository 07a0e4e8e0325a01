// Package session keeps one view model per browser session and drops the
// ones that have been idle longer than the TTL.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"nutridash/internal/nutrition/viewmodel"
	"nutridash/pkg/requestcontext"
)

// Factory builds the view model for a new session.
type Factory func() (*viewmodel.Model, error)

// Gauge receives the live session count.
type Gauge interface {
	SetActiveSessions(n int)
}

type entry struct {
	model    *viewmodel.Model
	lastSeen time.Time
}

type Registry struct {
	factory Factory
	ttl     time.Duration
	logger  *slog.Logger
	gauge   Gauge

	mu       sync.Mutex
	sessions map[string]*entry
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithGauge(g Gauge) Option {
	return func(r *Registry) { r.gauge = g }
}

func New(factory Factory, ttl time.Duration, opts ...Option) (*Registry, error) {
	if factory == nil {
		return nil, errors.New("view model factory is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session TTL must be positive")
	}
	r := &Registry{
		factory:  factory,
		ttl:      ttl,
		logger:   slog.Default(),
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Get returns the model for the session in ctx, creating it on first use.
func (r *Registry) Get(ctx context.Context) (*viewmodel.Model, error) {
	id := requestcontext.SessionID(ctx)
	if id == "" {
		return nil, errors.New("request carries no session")
	}
	now := requestcontext.Now(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = now
		return e.model, nil
	}
	model, err := r.factory()
	if err != nil {
		return nil, err
	}
	r.sessions[id] = &entry{model: model, lastSeen: now}
	r.report()
	r.logger.DebugContext(ctx, "session opened", "session_id", id, "active", len(r.sessions))
	return model, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartCleanup evicts idle sessions every interval until ctx is cancelled.
func (r *Registry) StartCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.RemoveExpiredAt(time.Now()); n > 0 {
				r.logger.InfoContext(ctx, "evicted idle sessions", "count", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// RemoveExpiredAt evicts sessions idle for longer than the TTL as of now and
// returns how many were evicted.
func (r *Registry) RemoveExpiredAt(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.report()
	}
	return removed
}

func (r *Registry) report() {
	if r.gauge != nil {
		r.gauge.SetActiveSessions(len(r.sessions))
	}
}

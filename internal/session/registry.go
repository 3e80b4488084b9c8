package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/posture/internal/detector"
	"github.com/ayusman/posture/internal/posture"
)

// DetectorFactory creates the detector for a new session.
type DetectorFactory func() (detector.Detector, error)

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for creation and idle times.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithAnalyzerOptions passes options to every analyzer the registry creates.
func WithAnalyzerOptions(opts ...posture.Option) Option {
	return func(r *Registry) {
		r.analyzerOpts = append(r.analyzerOpts, opts...)
	}
}

// WithOnRemove registers a callback run after a session is removed, either
// explicitly or by the idle sweep.
func WithOnRemove(fn func(s *Session)) Option {
	return func(r *Registry) {
		r.onRemove = fn
	}
}

// Registry maps session IDs to sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	newDetector  DetectorFactory
	cfg          posture.Config
	analyzerOpts []posture.Option
	now          func() time.Time
	onRemove     func(s *Session)
}

// NewRegistry creates an empty registry. Every session gets its own detector
// from factory and an analyzer configured with cfg.
func NewRegistry(factory DetectorFactory, cfg posture.Config, opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Session),
		newDetector: factory,
		cfg:         cfg,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts a session for user under a fresh ID.
func (r *Registry) Create(user string) (*Session, error) {
	s, err := r.build(uuid.NewString(), user)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	slog.Info("session created", "session", s.ID, "user", user)
	return s, nil
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	s.touch(r.now())
	return s, nil
}

// GetOrCreate returns the session with the given ID, creating it for user if
// it does not exist. The boolean reports whether a session was created.
func (r *Registry) GetOrCreate(id, user string) (*Session, bool, error) {
	if s, err := r.Get(id); err == nil {
		return s, false, nil
	}

	s, err := r.build(id, user)
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		// Lost the race; drop the detector we just started.
		s.close()
		return existing, false, nil
	}
	r.sessions[id] = s
	r.mu.Unlock()

	slog.Info("session created", "session", id, "user", user)
	return s, true, nil
}

func (r *Registry) build(id, user string) (*Session, error) {
	d, err := r.newDetector()
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}
	a := posture.NewAnalyzer(d, r.cfg, r.analyzerOpts...)
	return newSession(id, user, a, r.now), nil
}

// Remove ends a session and releases its detector.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return r.teardown(s)
}

func (r *Registry) teardown(s *Session) error {
	err := s.close()
	if err != nil {
		slog.Warn("close session detector", "session", s.ID, "error", err)
	}
	if r.onRemove != nil {
		r.onRemove(s)
	}
	slog.Info("session removed", "session", s.ID)
	return err
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the IDs of all live sessions.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Sweep removes sessions unused for longer than maxIdle and returns their IDs.
func (r *Registry) Sweep(maxIdle time.Duration) []string {
	cutoff := r.now().Add(-maxIdle)

	var idle []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(idle))
	for _, s := range idle {
		r.teardown(s)
		ids = append(ids, s.ID)
	}
	return ids
}

// Run sweeps idle sessions every interval until ctx is cancelled, then
// closes every remaining session.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			if ids := r.Sweep(maxIdle); len(ids) > 0 {
				slog.Info("swept idle sessions", "count", len(ids))
			}
		}
	}
}

// Close removes every session.
func (r *Registry) Close() error {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := r.teardown(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

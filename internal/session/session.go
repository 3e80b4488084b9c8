// Package session keeps one posture analyzer, and the detector it owns, per
// tracked user.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/posture/internal/posture"
)

var (
	// ErrNotFound is returned when no session has the requested ID.
	ErrNotFound = errors.New("session not found")
	// ErrClosed is returned by Do after the session has been removed.
	ErrClosed = errors.New("session closed")
)

// Session is one user's analysis state. Calls to Do are serialized, so a
// session's frames reach its detector one at a time and in order.
type Session struct {
	ID        string
	User      string
	CreatedAt time.Time

	mu       sync.Mutex
	analyzer *posture.Analyzer
	closed   bool
	now      func() time.Time

	// lastUsed is UnixNano, read by the sweeper without taking mu.
	lastUsed atomic.Int64
}

func newSession(id, user string, a *posture.Analyzer, now func() time.Time) *Session {
	created := now()
	s := &Session{
		ID:        id,
		User:      user,
		CreatedAt: created,
		analyzer:  a,
		now:       now,
	}
	s.touch(created)
	return s
}

// Do runs fn with exclusive access to the session's analyzer.
func (s *Session) Do(fn func(a *posture.Analyzer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	err := fn(s.analyzer)
	s.touch(s.now())
	return err
}

// LastUsed returns when Do last finished, or the creation time.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// close waits for any running Do and releases the detector.
func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.analyzer.Close()
}

package posture

import "time"

// Sequencer produces the millisecond timestamps a video-mode detector needs.
// Each call advances by the wall-clock time since the previous call, never
// by less than one millisecond, so the sequence strictly increases.
type Sequencer struct {
	now  func() time.Time
	last time.Time
	ts   int64
}

// NewSequencer creates a Sequencer driven by the given clock.
// A nil clock uses time.Now.
func NewSequencer(now func() time.Time) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{now: now, last: now()}
}

// Next returns the timestamp for the next submitted frame.
// Call it exactly once per frame, in submission order.
func (s *Sequencer) Next() int64 {
	now := s.now()
	dt := now.Sub(s.last).Milliseconds()
	if dt < 1 {
		dt = 1
	}
	s.last = now
	s.ts += dt
	return s.ts
}

// Current returns the last timestamp handed out.
func (s *Sequencer) Current() int64 {
	return s.ts
}

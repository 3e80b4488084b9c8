package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/posture/internal/posture"
)

// captureRecorder keeps every entry it is given.
type captureRecorder struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	closed  bool
}

func (c *captureRecorder) Record(_ context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return c.err
}

func (c *captureRecorder) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.err
}

func sampleEntry() Entry {
	return Entry{
		SessionID: "sess-1",
		User:      "alice",
		Verdict:   posture.VerdictBad,
		Category:  posture.CategorySlouch,
		Features:  posture.Features{TorsoAngle: 12.5, NeckAngle: 1.5, ShoulderTilt: -0.5},
		Time:      time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestNewEntry(t *testing.T) {
	res := &posture.Result{
		Features: posture.Features{TorsoAngle: 3},
		Verdict:  posture.VerdictGood,
		Category: posture.CategoryNormal,
	}
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	e := NewEntry("s", "u", res, at)
	if e.SessionID != "s" || e.User != "u" || e.Verdict != posture.VerdictGood ||
		e.Category != posture.CategoryNormal || e.Features.TorsoAngle != 3 || !e.Time.Equal(at) {
		t.Errorf("NewEntry() = %+v", e)
	}
}

func TestMulti_RecordsIntoAll(t *testing.T) {
	a, b := &captureRecorder{}, &captureRecorder{}
	m := Multi(a, b)

	if err := m.Record(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(a.entries) != 1 || len(b.entries) != 1 {
		t.Errorf("entries: a=%d b=%d, want 1 each", len(a.entries), len(b.entries))
	}
}

func TestMulti_FailingSinkDoesNotStopOthers(t *testing.T) {
	errA := errors.New("broker down")
	errC := errors.New("disk full")
	a := &captureRecorder{err: errA}
	b := &captureRecorder{}
	c := &captureRecorder{err: errC}
	m := Multi(a, b, c)

	err := m.Record(context.Background(), sampleEntry())
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("expected both sink errors, got %v", err)
	}
	if len(b.entries) != 1 {
		t.Error("healthy sink should still receive the entry")
	}

	m.Close()
	if !a.closed || !b.closed || !c.closed {
		t.Error("Close should close every sink")
	}
}

func TestMulti_Empty(t *testing.T) {
	m := Multi()
	if err := m.Record(context.Background(), sampleEntry()); err != nil {
		t.Errorf("empty Multi should not fail: %v", err)
	}
}

func TestDiscard(t *testing.T) {
	if err := Discard.Record(context.Background(), sampleEntry()); err != nil {
		t.Errorf("Discard.Record() error = %v", err)
	}
	if err := Discard.Close(); err != nil {
		t.Errorf("Discard.Close() error = %v", err)
	}
}

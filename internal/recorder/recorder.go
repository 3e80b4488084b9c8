// Package recorder persists and publishes posture verdicts.
package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/posture/internal/posture"
)

// Entry is one verdict to record.
type Entry struct {
	SessionID string
	User      string
	Verdict   posture.Verdict
	Category  posture.Category
	Features  posture.Features
	Time      time.Time
}

// NewEntry builds an Entry from an analysis result.
func NewEntry(sessionID, user string, res *posture.Result, at time.Time) Entry {
	return Entry{
		SessionID: sessionID,
		User:      user,
		Verdict:   res.Verdict,
		Category:  res.Category,
		Features:  res.Features,
		Time:      at,
	}
}

// Recorder is a sink for posture verdicts.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// multi fans entries out to several recorders.
type multi struct {
	recorders []Recorder
}

// Multi returns a Recorder that records into every given recorder. A failing
// sink does not stop the others; all errors are joined.
func Multi(recorders ...Recorder) Recorder {
	return &multi{recorders: recorders}
}

func (m *multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multi) Close() error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every entry.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, Entry) error { return nil }
func (discard) Close() error                        { return nil }

package recorder

import (
	"context"
	"fmt"

	"github.com/ayusman/posture/internal/store"
)

// StoreRecorder writes entries to the SQLite posture log.
type StoreRecorder struct {
	logs *store.LogRepository
}

// NewStoreRecorder creates a recorder backed by s. Closing the recorder does
// not close the store.
func NewStoreRecorder(s *store.Store) *StoreRecorder {
	return &StoreRecorder{logs: s.Logs()}
}

// Record inserts the entry into posture_logs.
func (r *StoreRecorder) Record(ctx context.Context, e Entry) error {
	err := r.logs.Create(&store.LogEntry{
		SessionID:    e.SessionID,
		Posture:      e.Verdict,
		PostureType:  e.Category,
		TorsoAngle:   e.Features.TorsoAngle,
		NeckAngle:    e.Features.NeckAngle,
		ShoulderTilt: e.Features.ShoulderTilt,
		CreatedAt:    e.Time,
	})
	if err != nil {
		return fmt.Errorf("failed to save posture log: %w", err)
	}
	return nil
}

// Close is a no-op.
func (r *StoreRecorder) Close() error {
	return nil
}

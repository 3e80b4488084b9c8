package store

import (
	"database/sql"
	"time"

	"github.com/ayusman/posture/internal/posture"
)

// LogEntry represents one recorded posture verdict.
type LogEntry struct {
	ID           int64
	SessionID    string
	Posture      posture.Verdict
	PostureType  posture.Category
	TorsoAngle   float64
	NeckAngle    float64
	ShoulderTilt float64
	CreatedAt    time.Time
}

// LogRepository provides operations for posture logs.
type LogRepository struct {
	db *sql.DB
}

// Logs returns the posture log repository for this store.
func (s *Store) Logs() *LogRepository {
	return &LogRepository{db: s.db}
}

// Create inserts a log entry and sets its ID.
func (r *LogRepository) Create(e *LogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(
		`INSERT INTO posture_logs (session_id, posture, posture_type, torso_angle, neck_angle, shoulder_tilt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, string(e.Posture), string(e.PostureType),
		e.TorsoAngle, e.NeckAngle, e.ShoulderTilt, e.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListBySession retrieves a session's log entries, oldest first.
func (r *LogRepository) ListBySession(sessionID string) ([]*LogEntry, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, posture, posture_type, torso_angle, neck_angle, shoulder_tilt, created_at
		 FROM posture_logs WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		e := &LogEntry{}
		var verdict, category string

		err := rows.Scan(&e.ID, &e.SessionID, &verdict, &category,
			&e.TorsoAngle, &e.NeckAngle, &e.ShoulderTilt, &e.CreatedAt)
		if err != nil {
			return nil, err
		}

		e.Posture = posture.Verdict(verdict)
		e.PostureType = posture.Category(category)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// CountBySession returns the number of log entries for a session.
func (r *LogRepository) CountBySession(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM posture_logs WHERE session_id = ?`, sessionID,
	).Scan(&n)
	return n, err
}

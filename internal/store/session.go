package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/posture/internal/posture"
)

// Session represents a tracking session stored in the database.
type Session struct {
	ID        string
	UserName  string
	CreatedAt time.Time
	// EndedAt is nil while the session is live.
	EndedAt *time.Time
	// Baseline is nil until the session has been calibrated.
	Baseline *posture.Baseline
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, user_name, created_at, ended_at, baseline_torso, baseline_neck, baseline_tilt`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	var torso, neck, tilt sql.NullFloat64

	if err := row.Scan(&sess.ID, &sess.UserName, &sess.CreatedAt, &ended, &torso, &neck, &tilt); err != nil {
		return nil, err
	}

	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	if torso.Valid && neck.Valid && tilt.Valid {
		sess.Baseline = &posture.Baseline{
			TorsoAngle:   torso.Float64,
			NeckAngle:    neck.Float64,
			ShoulderTilt: tilt.Float64,
		}
	}
	return sess, nil
}

// Create inserts a new session into the database.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}

	var torso, neck, tilt sql.NullFloat64
	if b := sess.Baseline; b != nil {
		torso = sql.NullFloat64{Float64: b.TorsoAngle, Valid: true}
		neck = sql.NullFloat64{Float64: b.NeckAngle, Valid: true}
		tilt = sql.NullFloat64{Float64: b.ShoulderTilt, Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, user_name, created_at, baseline_torso, baseline_neck, baseline_tilt)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserName, sess.CreatedAt, torso, neck, tilt,
	)
	return err
}

// Ensure creates the session if it does not exist yet and returns the stored row.
func (r *SessionRepository) Ensure(id, userName string) (*Session, error) {
	sess, err := r.GetByID(id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	sess = &Session{ID: id, UserName: userName}
	if err := r.Create(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// ListByUser retrieves a user's sessions, newest first.
func (r *SessionRepository) ListByUser(userName string) ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions WHERE user_name = ? ORDER BY created_at DESC`,
		userName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// LatestBaseline returns the most recent baseline recorded for a user.
func (r *SessionRepository) LatestBaseline(userName string) (*posture.Baseline, error) {
	var b posture.Baseline
	err := r.db.QueryRow(
		`SELECT baseline_torso, baseline_neck, baseline_tilt FROM sessions
		 WHERE user_name = ? AND baseline_torso IS NOT NULL
		   AND baseline_neck IS NOT NULL AND baseline_tilt IS NOT NULL
		 ORDER BY created_at DESC LIMIT 1`,
		userName,
	).Scan(&b.TorsoAngle, &b.NeckAngle, &b.ShoulderTilt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// SetBaseline stores a calibrated baseline on a session.
func (r *SessionRepository) SetBaseline(id string, b posture.Baseline) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET baseline_torso = ?, baseline_neck = ?, baseline_tilt = ? WHERE id = ?`,
		b.TorsoAngle, b.NeckAngle, b.ShoulderTilt, id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// End marks a session as ended. Ending it again keeps the first end time.
func (r *SessionRepository) End(id string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = COALESCE(ended_at, ?) WHERE id = ?`,
		at.UTC(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete removes a session and its logs.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

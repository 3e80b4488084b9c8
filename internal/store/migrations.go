package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per tracking session, with its calibrated baseline
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			baseline_torso REAL,
			baseline_neck REAL,
			baseline_tilt REAL
		)`,

		// Posture logs table - one row per recorded verdict
		`CREATE TABLE IF NOT EXISTS posture_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			posture TEXT NOT NULL CHECK(posture IN ('good', 'bad')),
			posture_type TEXT NOT NULL CHECK(posture_type IN
				('normal', 'slouch', 'severe_slouch', 'forward_head', 'shoulder_tilt', 'bad_slouch')),
			torso_angle REAL NOT NULL,
			neck_angle REAL NOT NULL,
			shoulder_tilt REAL NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_name ON sessions(user_name)`,
		`CREATE INDEX IF NOT EXISTS idx_posture_logs_session_id ON posture_logs(session_id, created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

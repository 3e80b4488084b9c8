package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

const clickHouseSchema = `
	CREATE TABLE IF NOT EXISTS posture_logs (
		timestamp DateTime64(3),
		session_id String,
		user_name String,
		posture LowCardinality(String),
		posture_type LowCardinality(String),
		torso_angle Float64,
		neck_angle Float64,
		shoulder_tilt Float64
	) ENGINE = MergeTree()
	ORDER BY (session_id, timestamp)
	TTL toDateTime(timestamp) + INTERVAL 180 DAY
`

const clickHouseInsert = `
	INSERT INTO posture_logs (timestamp, session_id, user_name, posture, posture_type, torso_angle, neck_angle, shoulder_tilt)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// execer is the part of driver.Conn the recorder needs.
type execer interface {
	Exec(ctx context.Context, query string, args ...any) error
	Close() error
}

// ClickHouseRecorder appends entries to a ClickHouse table for analytics.
type ClickHouseRecorder struct {
	conn execer
}

// DialClickHouse connects, verifies the connection and creates the table.
func DialClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseRecorder, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	r, err := newClickHouseRecorder(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("connected to clickhouse", "addr", cfg.Addr, "database", cfg.Database)
	return r, nil
}

func newClickHouseRecorder(ctx context.Context, conn execer) (*ClickHouseRecorder, error) {
	if err := conn.Exec(ctx, clickHouseSchema); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &ClickHouseRecorder{conn: conn}, nil
}

// Record inserts one row.
func (r *ClickHouseRecorder) Record(ctx context.Context, e Entry) error {
	err := r.conn.Exec(ctx, clickHouseInsert,
		e.Time,
		e.SessionID,
		e.User,
		string(e.Verdict),
		string(e.Category),
		e.Features.TorsoAngle,
		e.Features.NeckAngle,
		e.Features.ShoulderTilt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert posture log: %w", err)
	}
	return nil
}

// Close closes the connection.
func (r *ClickHouseRecorder) Close() error {
	return r.conn.Close()
}

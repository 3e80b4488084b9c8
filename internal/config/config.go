// Package config loads the service configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/posture/internal/detector"
	"github.com/ayusman/posture/internal/posture"
	"github.com/ayusman/posture/internal/recorder"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Posture    posture.Config   `yaml:"posture"`
	Detector   detector.Config  `yaml:"detector"`
	Session    SessionConfig    `yaml:"session"`
	Camera     CameraConfig     `yaml:"camera"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	// MaxUploadBytes caps the size of an uploaded frame.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// StoreConfig contains SQLite and log paging settings.
type StoreConfig struct {
	Path        string        `yaml:"path"`
	PageGap     time.Duration `yaml:"page_gap"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// SessionConfig contains session lifetime settings.
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// RestoreBaseline starts new sessions from the user's last calibration.
	RestoreBaseline bool `yaml:"restore_baseline"`
}

// CameraConfig contains local camera settings for monitor mode.
type CameraConfig struct {
	Device int `yaml:"device"`
	FPS    int `yaml:"fps"`
	// CalibrationFrames is how many accepted frames a recalibration collects.
	CalibrationFrames int `yaml:"calibration_frames"`
	// User names the monitor's session.
	User string `yaml:"user"`
}

// MQTTConfig enables verdict publishing.
type MQTTConfig struct {
	Enabled             bool `yaml:"enabled"`
	recorder.MQTTConfig `yaml:",inline"`
}

// ClickHouseConfig enables verdict analytics.
type ClickHouseConfig struct {
	Enabled                   bool `yaml:"enabled"`
	recorder.ClickHouseConfig `yaml:",inline"`
}

// AlertsConfig controls the bad posture alert plugins.
type AlertsConfig struct {
	Enabled   bool          `yaml:"enabled"`
	PluginDir string        `yaml:"plugin_dir"`
	After     time.Duration `yaml:"after"`
	Repeat    time.Duration `yaml:"repeat"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 10 << 20,
		},
		Store: StoreConfig{
			Path:        "data/posture.db",
			PageGap:     5 * time.Minute,
			MinInterval: 2500 * time.Millisecond,
		},
		Posture:  posture.DefaultConfig(),
		Detector: detector.DefaultConfig(),
		Session: SessionConfig{
			IdleTimeout:     30 * time.Minute,
			SweepInterval:   time.Minute,
			RestoreBaseline: true,
		},
		Camera: CameraConfig{
			FPS:               5,
			CalibrationFrames: 30,
			User:              "local",
		},
		MQTT: MQTTConfig{
			MQTTConfig: recorder.MQTTConfig{
				Broker:   "tcp://localhost:1883",
				ClientID: "posture",
				Topic:    recorder.DefaultTopic,
				QoS:      1,
			},
		},
		ClickHouse: ClickHouseConfig{
			ClickHouseConfig: recorder.ClickHouseConfig{
				Addr:     "localhost:9000",
				Database: "posture",
				Username: "default",
			},
		},
		Alerts: AlertsConfig{
			PluginDir: "plugins",
			After:     30 * time.Second,
			Repeat:    5 * time.Minute,
			Timeout:   5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// path is not empty, then .env and POSTURE_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// A missing .env file is fine.
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if err := c.Posture.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("posture: %w", err))
	}
	if c.Store.PageGap <= 0 || c.Store.MinInterval < 0 {
		errs = append(errs, errors.New("store.page_gap must be positive and store.min_interval not negative"))
	}
	if c.Session.IdleTimeout <= 0 || c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("session.idle_timeout and session.sweep_interval must be positive"))
	}
	if c.Camera.FPS <= 0 {
		errs = append(errs, errors.New("camera.fps must be positive"))
	}
	if c.Camera.CalibrationFrames <= 0 {
		errs = append(errs, errors.New("camera.calibration_frames must be positive"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Addr == "" {
		errs = append(errs, errors.New("clickhouse.addr is required when clickhouse is enabled"))
	}
	if c.Alerts.Enabled && (c.Alerts.After <= 0 || c.Alerts.Repeat <= 0 || c.Alerts.Timeout <= 0) {
		errs = append(errs, errors.New("alerts.after, alerts.repeat and alerts.timeout must be positive"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// NewLogger builds the slog logger described by the log section.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

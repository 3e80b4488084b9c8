// Command posture runs the posture analysis service and the desktop monitor.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/ayusman/posture/internal/app"
	"github.com/ayusman/posture/internal/config"
	"github.com/ayusman/posture/internal/detector"
	"github.com/ayusman/posture/internal/plugin"
	"github.com/ayusman/posture/internal/recorder"
	"github.com/ayusman/posture/internal/session"
	"github.com/ayusman/posture/internal/store"
)

var version = "dev"

type rootFlags struct {
	configPath   string
	logLevel     string
	mockDetector bool
}

func main() {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "posture",
		Short: "Sitting posture analysis from camera frames",
		Long: `posture judges sitting posture from camera frames using MediaPipe pose
landmarks. "serve" exposes the per-session HTTP API; "monitor" watches a
local camera from the system tray.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flags.mockDetector, "mock-detector", false, "use a detector that never finds anyone")

	cmd.AddCommand(newServeCmd(&flags), newMonitorCmd(&flags))

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and installs the default logger.
func setup(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cfg, nil
}

// stack holds what both commands share.
type stack struct {
	store   *store.Store
	service *app.Service
	alerter *plugin.Alerter
	unwatch func()
}

func (r *stack) Close() {
	if r.unwatch != nil {
		r.unwatch()
		r.alerter.Wait()
	}
	if err := r.service.Close(); err != nil {
		slog.Warn("failed to close service", "error", err)
	}
	if err := r.store.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}

// newStack opens the store and recorders and builds the service.
func newStack(ctx context.Context, cfg *config.Config, flags *rootFlags) (*stack, error) {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	slog.Info("store opened", "path", st.Path())

	rec, err := newRecorder(ctx, cfg, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	svc := app.NewService(app.Config{
		Detectors: detectorFactory(cfg.Detector, flags.mockDetector),
		Posture:   cfg.Posture,
		Store:     st,
		Recorder:  rec,
		Paging: store.PageOptions{
			PageGap:     cfg.Store.PageGap,
			MinInterval: cfg.Store.MinInterval,
		},
		RestoreBaseline: cfg.Session.RestoreBaseline,
	})

	s := &stack{store: st, service: svc}
	if cfg.Alerts.Enabled {
		if err := s.watchAlerts(cfg.Alerts); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// watchAlerts runs the alert plugins on the service's verdicts.
func (r *stack) watchAlerts(cfg config.AlertsConfig) error {
	manager := plugin.NewManager(cfg.PluginDir)
	if err := manager.Discover(); err != nil {
		return fmt.Errorf("failed to discover plugins: %w", err)
	}
	if len(manager.List()) == 0 {
		slog.Warn("alerts enabled but no plugins found", "dir", manager.PluginDir())
	}

	r.alerter = plugin.NewAlerter(manager, plugin.NewExecutor(cfg.Timeout), plugin.AlertConfig{
		After:  cfg.After,
		Repeat: cfg.Repeat,
	})
	r.unwatch = r.service.Subscribe(func(u app.Update) {
		r.alerter.Observe(u.SessionID, u.User, u.Result, u.Time)
	})
	return nil
}

// newRecorder fans verdicts out to SQLite and any enabled sinks.
func newRecorder(ctx context.Context, cfg *config.Config, st *store.Store) (recorder.Recorder, error) {
	sinks := []recorder.Recorder{recorder.NewStoreRecorder(st)}

	if cfg.MQTT.Enabled {
		mq, err := recorder.DialMQTT(cfg.MQTT.MQTTConfig)
		if err != nil {
			closeAll(sinks)
			return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
		slog.Info("publishing verdicts to mqtt", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic)
		sinks = append(sinks, mq)
	}

	if cfg.ClickHouse.Enabled {
		ch, err := recorder.DialClickHouse(ctx, cfg.ClickHouse.ClickHouseConfig)
		if err != nil {
			closeAll(sinks)
			return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
		}
		slog.Info("recording verdicts to clickhouse", "addr", cfg.ClickHouse.Addr)
		sinks = append(sinks, ch)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return recorder.Multi(sinks...), nil
}

func closeAll(sinks []recorder.Recorder) {
	for _, s := range sinks {
		s.Close()
	}
}

// detectorFactory starts one MediaPipe pose service per session.
func detectorFactory(cfg detector.Config, mock bool) session.DetectorFactory {
	if mock {
		slog.Warn("using mock detector, no poses will be found")
		return func() (detector.Detector, error) {
			return detector.NewMockDetector(), nil
		}
	}
	return func() (detector.Detector, error) {
		d, err := detector.NewMediaPipeDetector(cfg)
		if errors.Is(err, detector.ErrNotAvailable) {
			return nil, fmt.Errorf("%w (set detector.script_path or use --mock-detector)", err)
		}
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.posture/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".posture", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

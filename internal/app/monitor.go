package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/posture/internal/capture"
	"github.com/ayusman/posture/internal/posture"
	"github.com/ayusman/posture/internal/session"
)

// DefaultCalibrationFrames is how many accepted frames a recalibration
// collects when no count is given.
const DefaultCalibrationFrames = 30

// MonitorConfig holds configuration for a local camera monitor.
type MonitorConfig struct {
	Service *Service
	Camera  capture.Camera
	// SessionID names the monitor's session. Empty uses "local".
	SessionID string
	User      string
	FPS       int
	// CalibrationFrames is the default sample count for Recalibrate.
	CalibrationFrames int
}

// MonitorStatus is reported to OnUpdate after every processed frame.
type MonitorStatus struct {
	Enabled     bool
	HasPose     bool
	Verdict     posture.Verdict
	Category    posture.Category
	Features    posture.Features
	Calibrating bool
	Samples     int
}

// Monitor feeds a local camera into one Service session and keeps the
// latest annotated frame for streaming.
type Monitor struct {
	config  MonitorConfig
	service *Service
	camera  capture.Camera

	mu        sync.RWMutex
	enabled   bool
	stopCh    chan struct{}
	done      chan struct{}
	calTarget int
	latest    *gocv.Mat
	status    MonitorStatus
	onUpdate  func(MonitorStatus)
}

// NewMonitor creates a Monitor. Detection starts enabled.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.SessionID == "" {
		cfg.SessionID = "local"
	}
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.CalibrationFrames <= 0 {
		cfg.CalibrationFrames = DefaultCalibrationFrames
	}
	return &Monitor{
		config:  cfg,
		service: cfg.Service,
		camera:  cfg.Camera,
		enabled: true,
	}
}

// SessionID returns the ID of the monitor's session.
func (m *Monitor) SessionID() string {
	return m.config.SessionID
}

// OnUpdate sets the callback invoked after every processed frame.
func (m *Monitor) OnUpdate(fn func(MonitorStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// SetEnabled pauses or resumes analysis. The camera stays open.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
	m.status.Enabled = enabled
}

// IsEnabled reports whether analysis is running.
func (m *Monitor) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Status returns the most recent status.
func (m *Monitor) Status() MonitorStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Recalibrate starts a calibration that finishes after n accepted frames.
// A non-positive n uses the configured default.
func (m *Monitor) Recalibrate(n int) error {
	if n <= 0 {
		n = m.config.CalibrationFrames
	}
	if err := m.ensureSession(); err != nil {
		return err
	}
	if err := m.service.BeginCalibration(m.config.SessionID); err != nil {
		return err
	}

	m.mu.Lock()
	m.calTarget = n
	m.mu.Unlock()

	slog.Info("recalibrating", "session", m.config.SessionID, "frames", n)
	return nil
}

// Start opens the camera and begins the capture loop.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopCh != nil {
		return nil
	}

	if err := m.ensureSession(); err != nil {
		return err
	}

	if err := m.camera.Open(); err != nil {
		return err
	}
	m.camera.SetFPS(m.config.FPS)

	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.status.Enabled = m.enabled
	go m.run(m.stopCh, m.done)

	slog.Info("monitor started", "session", m.config.SessionID, "fps", m.config.FPS)
	return nil
}

// Stop halts the capture loop and closes the camera.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stopCh, done := m.stopCh, m.done
	m.stopCh, m.done = nil, nil
	m.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done

	if err := m.camera.Close(); err != nil {
		slog.Warn("failed to close camera", "error", err)
	}

	m.mu.Lock()
	if m.latest != nil {
		m.latest.Close()
		m.latest = nil
	}
	m.mu.Unlock()

	slog.Info("monitor stopped", "session", m.config.SessionID)
}

func (m *Monitor) run(stopCh, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(m.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !m.IsEnabled() {
				continue
			}
			if err := m.Step(context.Background()); err != nil {
				slog.Warn("failed to process frame", "error", err)
			}
		}
	}
}

// Step reads and processes one frame.
func (m *Monitor) Step(ctx context.Context) error {
	frame, err := m.camera.ReadFrame()
	if err != nil {
		return err
	}

	res, calibrating, samples, err := m.analyze(ctx, frame)
	if err != nil {
		frame.Close()
		return err
	}

	status := MonitorStatus{
		Enabled:     m.IsEnabled(),
		Calibrating: calibrating,
		Samples:     samples,
	}
	overlay := capture.Overlay{}
	if res != nil {
		status.HasPose = true
		status.Verdict = res.Verdict
		status.Category = res.Category
		status.Features = res.Features
		overlay.Pose = res.Pose
		overlay.Verdict = string(res.Verdict)
		overlay.Label = capture.Label(string(res.Verdict), string(res.Category), res.Features.TorsoAngle)
	}
	if calibrating {
		overlay.Label = "calibrating"
	}
	overlay.Draw(frame)

	m.mu.Lock()
	if m.latest != nil {
		m.latest.Close()
	}
	m.latest = frame
	m.status = status
	onUpdate := m.onUpdate
	m.mu.Unlock()

	if onUpdate != nil {
		onUpdate(status)
	}
	return nil
}

// analyze routes the frame to calibration while one is pending and
// finishes it once enough samples are collected.
func (m *Monitor) analyze(ctx context.Context, frame *gocv.Mat) (*posture.Result, bool, int, error) {
	m.mu.RLock()
	target := m.calTarget
	m.mu.RUnlock()

	if err := m.ensureSession(); err != nil {
		return nil, false, 0, err
	}

	id := m.config.SessionID
	if target == 0 {
		res, err := m.service.Analyze(ctx, id, frame)
		return res, false, 0, err
	}

	res, samples, err := m.service.CalibrationFrame(id, frame)
	if err != nil {
		return nil, false, 0, err
	}
	if samples < target {
		return res, true, samples, nil
	}

	m.mu.Lock()
	m.calTarget = 0
	m.mu.Unlock()

	if _, err := m.service.FinishCalibration(id); err != nil {
		return nil, false, 0, err
	}
	return res, false, samples, nil
}

// ensureSession recreates the monitor session after the idle sweeper removed it.
func (m *Monitor) ensureSession() error {
	_, err := m.service.EnsureSession(m.config.SessionID, m.config.User)
	return err
}

// ReadFrame returns a copy of the latest annotated frame.
func (m *Monitor) ReadFrame() (*gocv.Mat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latest == nil {
		return nil, capture.ErrNoFrame
	}
	frame := m.latest.Clone()
	return &frame, nil
}

// Close stops the monitor and ends its session.
func (m *Monitor) Close() error {
	m.Stop()
	err := m.service.EndSession(m.config.SessionID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	return nil
}

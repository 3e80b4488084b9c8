// Package app ties sessions, persistence and recording into the operations
// the HTTP API and the desktop monitor share.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/posture/internal/posture"
	"github.com/ayusman/posture/internal/recorder"
	"github.com/ayusman/posture/internal/session"
	"github.com/ayusman/posture/internal/store"
)

var (
	// ErrNoPose is returned by CalibrateOnce when the frame shows nobody.
	ErrNoPose = errors.New("no pose detected")
	// ErrNoStore is returned by history queries when persistence is disabled.
	ErrNoStore = errors.New("log storage is disabled")
	// ErrCalibrating is returned by CalibrateOnce while a multi-frame
	// calibration is running.
	ErrCalibrating = errors.New("calibration already in progress")
)

// Update is published after every analyzed frame.
type Update struct {
	SessionID string
	User      string
	// Result is nil when the frame carried no usable pose.
	Result *posture.Result
	Time   time.Time
}

// Listener receives updates. It runs on the analyzing goroutine and must not block.
type Listener func(Update)

// Config holds the Service dependencies.
type Config struct {
	// Detectors creates one detector per session.
	Detectors session.DetectorFactory
	Posture   posture.Config
	// Store persists sessions, baselines and logs. Nil disables persistence.
	Store *store.Store
	// Recorder receives every verdict. Nil discards them.
	Recorder recorder.Recorder
	Paging   store.PageOptions
	// RestoreBaseline seeds new sessions with the user's last calibration.
	RestoreBaseline bool
	// SessionOptions are passed to the session registry.
	SessionOptions []session.Option
	Now            func() time.Time
}

// Status summarizes a live session.
type Status struct {
	ID          string
	User        string
	CreatedAt   time.Time
	Calibrating bool
	Samples     int
	Baseline    *posture.Baseline
}

// Service runs posture analysis for many concurrent sessions.
type Service struct {
	registry        *session.Registry
	store           *store.Store
	recorder        recorder.Recorder
	paging          store.PageOptions
	restoreBaseline bool
	now             func() time.Time

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	s := &Service{
		store:           cfg.Store,
		recorder:        cfg.Recorder,
		paging:          cfg.Paging,
		restoreBaseline: cfg.RestoreBaseline,
		now:             cfg.Now,
		listeners:       make(map[int]Listener),
	}
	if s.recorder == nil {
		s.recorder = recorder.Discard
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.paging == (store.PageOptions{}) {
		s.paging = store.DefaultPageOptions()
	}

	opts := append([]session.Option{session.WithOnRemove(s.sessionRemoved)}, cfg.SessionOptions...)
	s.registry = session.NewRegistry(cfg.Detectors, cfg.Posture, opts...)
	return s
}

// Registry returns the underlying session registry.
func (s *Service) Registry() *session.Registry {
	return s.registry
}

// Run sweeps idle sessions until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval, maxIdle time.Duration) {
	s.registry.Run(ctx, interval, maxIdle)
}

// Close ends every session and closes the recorder.
func (s *Service) Close() error {
	return errors.Join(s.registry.Close(), s.recorder.Close())
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Service) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) publish(u Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.listeners {
		fn(u)
	}
}

// StartSession creates a session for user under a fresh ID.
func (s *Service) StartSession(user string) (*session.Session, error) {
	sess, err := s.registry.Create(user)
	if err != nil {
		return nil, err
	}
	if err := s.persistSession(sess); err != nil {
		s.registry.Remove(sess.ID)
		return nil, err
	}
	return sess, nil
}

// EnsureSession returns the live session with the given ID, creating it for
// user if needed.
func (s *Service) EnsureSession(id, user string) (*session.Session, error) {
	sess, created, err := s.registry.GetOrCreate(id, user)
	if err != nil {
		return nil, err
	}
	if created {
		if err := s.persistSession(sess); err != nil {
			s.registry.Remove(id)
			return nil, err
		}
	}
	return sess, nil
}

// persistSession stores the session row and restores a saved baseline.
func (s *Service) persistSession(sess *session.Session) error {
	if s.store == nil {
		return nil
	}

	row, err := s.store.Sessions().Ensure(sess.ID, sess.User)
	if err != nil {
		return err
	}
	if !s.restoreBaseline {
		return nil
	}

	baseline := row.Baseline
	if baseline == nil {
		baseline, err = s.store.Sessions().LatestBaseline(sess.User)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	slog.Info("restored baseline", "session", sess.ID, "user", sess.User)
	return sess.Do(func(a *posture.Analyzer) error {
		a.SetBaseline(*baseline)
		return nil
	})
}

func (s *Service) sessionRemoved(sess *session.Session) {
	if s.store == nil {
		return
	}
	if err := s.store.Sessions().End(sess.ID, s.now()); err != nil {
		slog.Warn("failed to mark session ended", "session", sess.ID, "error", err)
	}
}

// EndSession removes a live session.
func (s *Service) EndSession(id string) error {
	return s.registry.Remove(id)
}

// Status returns a snapshot of a live session.
func (s *Service) Status(id string) (Status, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Status{}, err
	}

	st := Status{ID: sess.ID, User: sess.User, CreatedAt: sess.CreatedAt}
	err = sess.Do(func(a *posture.Analyzer) error {
		st.Calibrating = a.Calibrating()
		st.Samples = a.CalibrationSamples()
		if b, ok := a.Baseline(); ok {
			st.Baseline = &b
		}
		return nil
	})
	return st, err
}

// Analyze runs one frame through a session, records the verdict and
// publishes the update. A nil result means the frame had no usable pose.
func (s *Service) Analyze(ctx context.Context, id string, frame *gocv.Mat) (*posture.Result, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	var res *posture.Result
	err = sess.Do(func(a *posture.Analyzer) error {
		var err error
		res, err = a.Analyze(frame)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case res == nil:
		slog.Debug("no usable pose", "session", id)
	case res.Calibrating:
		// Calibration samples are not verdicts.
	default:
		if err := s.recorder.Record(ctx, recorder.NewEntry(sess.ID, sess.User, res, now)); err != nil {
			slog.Warn("failed to record verdict", "session", id, "error", err)
		}
	}

	s.publish(Update{SessionID: sess.ID, User: sess.User, Result: res, Time: now})
	return res, nil
}

// BeginCalibration starts collecting calibration samples for a session.
func (s *Service) BeginCalibration(id string) error {
	return s.withAnalyzer(id, func(a *posture.Analyzer) error {
		a.BeginCalibration()
		return nil
	})
}

// CancelCalibration drops a running calibration.
func (s *Service) CancelCalibration(id string) error {
	return s.withAnalyzer(id, func(a *posture.Analyzer) error {
		a.CancelCalibration()
		return nil
	})
}

// CalibrationFrame analyzes a frame into the running calibration, starting
// one if needed, and returns the result and the number of samples so far.
// Calibration frames are not recorded.
func (s *Service) CalibrationFrame(id string, frame *gocv.Mat) (*posture.Result, int, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, 0, err
	}

	var res *posture.Result
	var samples int
	err = sess.Do(func(a *posture.Analyzer) error {
		if !a.Calibrating() {
			a.BeginCalibration()
		}
		var err error
		res, err = a.Analyze(frame)
		samples = a.CalibrationSamples()
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	s.publish(Update{SessionID: sess.ID, User: sess.User, Result: res, Time: s.now()})
	return res, samples, nil
}

// FinishCalibration turns the collected samples into the session baseline.
func (s *Service) FinishCalibration(id string) (posture.Baseline, error) {
	var baseline posture.Baseline
	err := s.withAnalyzer(id, func(a *posture.Analyzer) error {
		var err error
		baseline, err = a.FinishCalibration()
		return err
	})
	if err != nil {
		return posture.Baseline{}, err
	}
	return baseline, s.saveBaseline(id, baseline)
}

// CalibrateOnce calibrates from a single frame. It refuses to interrupt a
// running calibration.
func (s *Service) CalibrateOnce(id string, frame *gocv.Mat) (posture.Baseline, error) {
	var baseline posture.Baseline
	err := s.withAnalyzer(id, func(a *posture.Analyzer) error {
		if a.Calibrating() {
			return ErrCalibrating
		}
		a.BeginCalibration()
		res, err := a.Analyze(frame)
		if err != nil {
			a.CancelCalibration()
			return err
		}
		if res == nil {
			a.CancelCalibration()
			return ErrNoPose
		}
		baseline, err = a.FinishCalibration()
		return err
	})
	if err != nil {
		return posture.Baseline{}, err
	}
	return baseline, s.saveBaseline(id, baseline)
}

func (s *Service) saveBaseline(id string, b posture.Baseline) error {
	slog.Info("calibrated", "session", id,
		"torso", b.TorsoAngle, "neck", b.NeckAngle, "tilt", b.ShoulderTilt)

	if s.store == nil {
		return nil
	}
	return s.store.Sessions().SetBaseline(id, b)
}

func (s *Service) withAnalyzer(id string, fn func(a *posture.Analyzer) error) error {
	sess, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return sess.Do(fn)
}

// Logs returns one page of a session's recorded history. The session need
// not be live.
func (s *Service) Logs(id string, page int) (store.Page, error) {
	if s.store == nil {
		return store.Page{}, ErrNoStore
	}
	if _, err := s.store.Sessions().GetByID(id); err != nil {
		return store.Page{}, err
	}

	entries, err := s.store.Logs().ListBySession(id)
	if err != nil {
		return store.Page{}, err
	}
	return store.PageOf(entries, page, s.paging), nil
}

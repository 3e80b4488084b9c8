package posture

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/posture/internal/detector"
)

// Result is the analysis of one accepted frame.
type Result struct {
	// Timestamp is the detector timestamp the frame was submitted with.
	Timestamp int64
	// Features are the smoothed posture angles.
	Features Features
	Verdict  Verdict
	Category Category
	// Pose is the raw skeleton the features were extracted from.
	Pose *detector.Pose
	// Calibrating is true when the frame was added to a running calibration.
	Calibrating bool
}

// Analyzer runs the per-frame pipeline for one tracking session:
// timestamp, detect, identity lock, geometry, smoothing, classification.
//
// An Analyzer is not safe for concurrent use. Callers serialize access per
// session and never share an Analyzer between sessions.
type Analyzer struct {
	cfg        Config
	detector   detector.Detector
	seq        *Sequencer
	lock       *IdentityLock
	smoother   *featureSmoother
	classifier *Classifier
	baseline   *Baseline
	calibrator *Calibrator
}

// Option configures an Analyzer.
type Option func(*analyzerOptions)

type analyzerOptions struct {
	now func() time.Time
}

// WithClock sets the clock used to sequence detector timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *analyzerOptions) {
		o.now = now
	}
}

// NewAnalyzer creates an Analyzer that owns the given detector.
func NewAnalyzer(d detector.Detector, cfg Config, opts ...Option) *Analyzer {
	var o analyzerOptions
	for _, opt := range opts {
		opt(&o)
	}

	return &Analyzer{
		cfg:        cfg,
		detector:   d,
		seq:        NewSequencer(o.now),
		lock:       NewIdentityLock(cfg.LockDistance),
		smoother:   newFeatureSmoother(cfg.Alpha),
		classifier: NewClassifier(cfg),
	}
}

// Analyze processes one frame.
//
// It returns (nil, nil) when the frame carries no usable signal: nobody in
// frame, a different person than the locked one, or a degenerate skeleton.
// Detector failures are returned as errors.
func (a *Analyzer) Analyze(frame *gocv.Mat) (*Result, error) {
	ts := a.seq.Next()

	pose, err := a.detector.Detect(frame, ts)
	if err != nil {
		return nil, fmt.Errorf("detect pose: %w", err)
	}

	if pose == nil {
		a.lock.Clear()
		return nil, nil
	}

	if !a.lock.Check(ShoulderCenter(&pose.WorldLandmarks)) {
		return nil, nil
	}

	raw, ok := Extract(&pose.WorldLandmarks)
	if !ok {
		return nil, nil
	}

	smoothed := a.smoother.Update(raw)

	result := &Result{
		Timestamp: ts,
		Features:  smoothed,
		Pose:      pose,
	}

	if a.calibrator != nil {
		a.calibrator.Add(smoothed)
		result.Calibrating = true
	}

	result.Verdict, result.Category = a.Evaluate(smoothed)
	return result, nil
}

// Evaluate judges features against the current baseline, if any, and
// classifies them.
func (a *Analyzer) Evaluate(f Features) (Verdict, Category) {
	return a.classifier.Judge(f, a.baseline), a.classifier.Classify(f)
}

// BeginCalibration starts collecting calibration samples, discarding any
// calibration already in progress. Every accepted frame is added until
// FinishCalibration succeeds or CancelCalibration is called.
func (a *Analyzer) BeginCalibration() {
	a.calibrator = NewCalibrator()
}

// Calibrating reports whether a calibration is in progress.
func (a *Analyzer) Calibrating() bool {
	return a.calibrator != nil
}

// CalibrationSamples returns the number of samples collected so far.
func (a *Analyzer) CalibrationSamples() int {
	if a.calibrator == nil {
		return 0
	}
	return a.calibrator.Len()
}

// AddCalibrationSample adds a sample to the running calibration, starting
// one if needed.
func (a *Analyzer) AddCalibrationSample(f Features) {
	if a.calibrator == nil {
		a.calibrator = NewCalibrator()
	}
	a.calibrator.Add(f)
}

// FinishCalibration averages the collected samples into the new baseline and
// restarts smoothing and identity tracking. On error nothing changes, so the
// caller can collect more samples and retry.
func (a *Analyzer) FinishCalibration() (Baseline, error) {
	if a.calibrator == nil {
		return Baseline{}, ErrInsufficientSamples
	}

	baseline, err := a.calibrator.Finish()
	if err != nil {
		return Baseline{}, err
	}

	a.baseline = &baseline
	a.calibrator = nil
	a.Reset()
	return baseline, nil
}

// CancelCalibration drops a calibration in progress.
func (a *Analyzer) CancelCalibration() {
	a.calibrator = nil
}

// SetBaseline replaces the baseline and restarts smoothing and identity tracking.
func (a *Analyzer) SetBaseline(b Baseline) {
	a.baseline = &b
	a.Reset()
}

// ClearBaseline returns the analyzer to absolute thresholds.
func (a *Analyzer) ClearBaseline() {
	a.baseline = nil
}

// Baseline returns the current baseline and whether one is set.
func (a *Analyzer) Baseline() (Baseline, bool) {
	if a.baseline == nil {
		return Baseline{}, false
	}
	return *a.baseline, true
}

// Reset clears the smoothers and the identity lock.
func (a *Analyzer) Reset() {
	a.smoother.Reset()
	a.lock.Clear()
}

// Config returns the analysis parameters.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Close releases the detector.
func (a *Analyzer) Close() error {
	return a.detector.Close()
}

package posture

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ayusman/posture/internal/detector"
)

func newTestAnalyzer(t *testing.T, cfg Config) (*Analyzer, *detector.MockDetector) {
	t.Helper()
	d := detector.NewMockDetector()
	clock := newFakeClock(33 * time.Millisecond)
	return NewAnalyzer(d, cfg, WithClock(clock.Now)), d
}

func analyzeOnce(t *testing.T, a *Analyzer) *Result {
	t.Helper()
	res, err := a.Analyze(nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	return res
}

func TestAnalyzer_Upright(t *testing.T) {
	a, d := newTestAnalyzer(t, DefaultConfig())
	d.SetPose(detector.UprightPose())

	res := analyzeOnce(t, a)
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.Verdict != VerdictGood || res.Category != CategoryNormal {
		t.Errorf("got %s/%s, want good/normal", res.Verdict, res.Category)
	}
	if math.Abs(res.Features.TorsoAngle) > angleTolerance {
		t.Errorf("torso = %f, want 0", res.Features.TorsoAngle)
	}
	if res.Pose == nil {
		t.Error("result should carry the pose")
	}
	if res.Timestamp != 33 {
		t.Errorf("timestamp = %d, want 33", res.Timestamp)
	}
}

func TestAnalyzer_AbsoluteThresholdsWithoutCalibration(t *testing.T) {
	a, d := newTestAnalyzer(t, testConfig())
	d.SetPose(detector.SlouchedPose())

	res := analyzeOnce(t, a)
	if res.Verdict != VerdictBad || res.Category != CategorySlouch {
		t.Errorf("got %s/%s, want bad/slouch", res.Verdict, res.Category)
	}
	if _, ok := a.Baseline(); ok {
		t.Error("analyzer should not have a baseline")
	}
}

func TestAnalyzer_NoPerson(t *testing.T) {
	a, _ := newTestAnalyzer(t, DefaultConfig())

	if res := analyzeOnce(t, a); res != nil {
		t.Errorf("expected no result for an empty frame, got %+v", res)
	}
}

func TestAnalyzer_DetectorError(t *testing.T) {
	a, d := newTestAnalyzer(t, DefaultConfig())
	boom := errors.New("service crashed")
	d.SetError(boom)

	res, err := a.Analyze(nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped detector error, got %v", err)
	}
	if res != nil {
		t.Error("expected nil result on error")
	}
}

func TestAnalyzer_TimestampsStrictlyIncrease(t *testing.T) {
	d := detector.NewMockDetector()
	frozen := newFakeClock(0)
	a := NewAnalyzer(d, DefaultConfig(), WithClock(frozen.Now))

	for i := 0; i < 5; i++ {
		a.Analyze(nil)
	}

	ts := d.Timestamps()
	if len(ts) != 5 {
		t.Fatalf("detector saw %d frames, want 5", len(ts))
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			t.Errorf("timestamps not increasing: %v", ts)
		}
	}
}

func TestAnalyzer_SmoothsFeatures(t *testing.T) {
	a, d := newTestAnalyzer(t, DefaultConfig())

	d.SetPose(detector.UprightPose())
	analyzeOnce(t, a)

	d.SetPose(detector.SlouchedPose())
	res := analyzeOnce(t, a)

	want := 0.23 * 15
	if math.Abs(res.Features.TorsoAngle-want) > 1e-6 {
		t.Errorf("torso = %f, want %f", res.Features.TorsoAngle, want)
	}
	if res.Verdict != VerdictGood {
		t.Errorf("one slouched frame should not flip the verdict, got %s", res.Verdict)
	}

	for i := 0; i < 60; i++ {
		res = analyzeOnce(t, a)
	}
	if res.Verdict != VerdictBad || res.Category != CategorySlouch {
		t.Errorf("sustained slouch: got %s/%s, want bad/slouch", res.Verdict, res.Category)
	}
}

func TestAnalyzer_RejectsOtherPerson(t *testing.T) {
	a, d := newTestAnalyzer(t, DefaultConfig())

	d.SetPose(detector.UprightPose())
	analyzeOnce(t, a)

	// Someone slouching a metre to the side.
	d.SetPose(detector.SlouchedPose().Translate(1.0, 0, 0))
	if res := analyzeOnce(t, a); res != nil {
		t.Fatalf("expected frame from another person to be rejected, got %+v", res)
	}

	// The rejected frame must not have leaked into the smoother.
	d.SetPose(detector.UprightPose())
	res := analyzeOnce(t, a)
	if math.Abs(res.Features.TorsoAngle) > angleTolerance {
		t.Errorf("torso = %f, want 0", res.Features.TorsoAngle)
	}
}

func TestAnalyzer_EmptyFrameReleasesLock(t *testing.T) {
	a, d := newTestAnalyzer(t, DefaultConfig())

	d.SetPose(detector.UprightPose())
	analyzeOnce(t, a)

	d.SetPose(nil)
	analyzeOnce(t, a)

	d.SetPose(detector.UprightPose().Translate(2, 0, 0))
	if res := analyzeOnce(t, a); res == nil {
		t.Error("after an empty frame any person should be accepted")
	}
}

func TestAnalyzer_DegenerateSkeleton(t *testing.T) {
	a, d := newTestAnalyzer(t, DefaultConfig())

	pose := detector.UprightPose()
	pose.WorldLandmarks[detector.LeftHip] = pose.WorldLandmarks[detector.LeftShoulder]
	pose.WorldLandmarks[detector.RightHip] = pose.WorldLandmarks[detector.RightShoulder]
	d.SetPose(pose)

	if res := analyzeOnce(t, a); res != nil {
		t.Errorf("expected no result for a degenerate skeleton, got %+v", res)
	}
}

func TestAnalyzer_Calibration(t *testing.T) {
	a, d := newTestAnalyzer(t, testConfig())
	d.SetPose(detector.SlouchedPose())

	a.BeginCalibration()
	if !a.Calibrating() {
		t.Fatal("expected calibration in progress")
	}

	for i := 0; i < 3; i++ {
		res := analyzeOnce(t, a)
		if !res.Calibrating {
			t.Error("result should be marked as a calibration sample")
		}
	}
	if n := a.CalibrationSamples(); n != 3 {
		t.Errorf("CalibrationSamples() = %d, want 3", n)
	}

	baseline, err := a.FinishCalibration()
	if err != nil {
		t.Fatalf("FinishCalibration() error = %v", err)
	}
	if math.Abs(baseline.TorsoAngle-15) > 1e-6 {
		t.Errorf("baseline torso = %f, want 15", baseline.TorsoAngle)
	}
	if a.Calibrating() {
		t.Error("calibration should be finished")
	}

	// The user's own slouch is now the reference.
	res := analyzeOnce(t, a)
	if res.Verdict != VerdictGood {
		t.Errorf("verdict against baseline = %s, want good", res.Verdict)
	}
	if res.Category != CategorySlouch {
		t.Errorf("category = %s, want slouch", res.Category)
	}
	if res.Calibrating {
		t.Error("result after calibration should not be a sample")
	}
}

func TestAnalyzer_CalibrationResetsSmoothing(t *testing.T) {
	a, d := newTestAnalyzer(t, DefaultConfig())

	d.SetPose(detector.UprightPose())
	a.BeginCalibration()
	analyzeOnce(t, a)
	if _, err := a.FinishCalibration(); err != nil {
		t.Fatalf("FinishCalibration() error = %v", err)
	}

	// First frame after calibration is unsmoothed, and the lock is free.
	d.SetPose(detector.SlouchedPose().Translate(3, 0, 0))
	res := analyzeOnce(t, a)
	if res == nil {
		t.Fatal("identity lock should be cleared by calibration")
	}
	if math.Abs(res.Features.TorsoAngle-15) > 1e-6 {
		t.Errorf("torso = %f, want the raw 15", res.Features.TorsoAngle)
	}
}

func TestAnalyzer_FinishWithoutSamples(t *testing.T) {
	a, _ := newTestAnalyzer(t, DefaultConfig())

	if _, err := a.FinishCalibration(); !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("expected ErrInsufficientSamples, got %v", err)
	}

	a.BeginCalibration()
	analyzeOnce(t, a) // nobody in frame

	if _, err := a.FinishCalibration(); !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("expected ErrInsufficientSamples, got %v", err)
	}
	if !a.Calibrating() {
		t.Error("a failed finish should leave the calibration running")
	}
}

func TestAnalyzer_AddCalibrationSample(t *testing.T) {
	a, _ := newTestAnalyzer(t, DefaultConfig())

	a.AddCalibrationSample(Features{TorsoAngle: 4, NeckAngle: 1, ShoulderTilt: 0})
	a.AddCalibrationSample(Features{TorsoAngle: 6, NeckAngle: 3, ShoulderTilt: 2})

	b, err := a.FinishCalibration()
	if err != nil {
		t.Fatalf("FinishCalibration() error = %v", err)
	}
	if b != (Baseline{TorsoAngle: 5, NeckAngle: 2, ShoulderTilt: 1}) {
		t.Errorf("baseline = %+v", b)
	}
}

func TestAnalyzer_SetAndClearBaseline(t *testing.T) {
	a, d := newTestAnalyzer(t, testConfig())
	d.SetPose(detector.SlouchedPose())

	a.SetBaseline(Baseline{TorsoAngle: 15})
	if res := analyzeOnce(t, a); res.Verdict != VerdictGood {
		t.Errorf("with baseline: verdict = %s, want good", res.Verdict)
	}

	a.ClearBaseline()
	if res := analyzeOnce(t, a); res.Verdict != VerdictBad {
		t.Errorf("without baseline: verdict = %s, want bad", res.Verdict)
	}
}

func TestAnalyzer_CancelCalibration(t *testing.T) {
	a, d := newTestAnalyzer(t, DefaultConfig())
	d.SetPose(detector.UprightPose())

	a.BeginCalibration()
	analyzeOnce(t, a)
	a.CancelCalibration()

	if a.Calibrating() || a.CalibrationSamples() != 0 {
		t.Error("calibration should be dropped")
	}
	if _, ok := a.Baseline(); ok {
		t.Error("cancel should not set a baseline")
	}
}

func TestAnalyzer_Close(t *testing.T) {
	a, d := newTestAnalyzer(t, DefaultConfig())
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !d.Closed() {
		t.Error("Close should close the detector")
	}
}

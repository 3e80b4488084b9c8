package posture

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientSamples is returned when a calibration is finished without samples.
var ErrInsufficientSamples = errors.New("insufficient calibration samples")

// Calibrator accumulates feature samples and averages them into a Baseline.
type Calibrator struct {
	torso []float64
	neck  []float64
	tilt  []float64
}

// NewCalibrator creates an empty Calibrator.
func NewCalibrator() *Calibrator {
	return &Calibrator{}
}

// Add records one sample.
func (c *Calibrator) Add(f Features) {
	c.torso = append(c.torso, f.TorsoAngle)
	c.neck = append(c.neck, f.NeckAngle)
	c.tilt = append(c.tilt, f.ShoulderTilt)
}

// Len returns the number of samples recorded.
func (c *Calibrator) Len() int {
	return len(c.torso)
}

// Finish returns the per-feature mean of all samples.
// The samples are kept, so more can be added and Finish called again.
func (c *Calibrator) Finish() (Baseline, error) {
	if c.Len() == 0 {
		return Baseline{}, ErrInsufficientSamples
	}

	return Baseline{
		TorsoAngle:   stat.Mean(c.torso, nil),
		NeckAngle:    stat.Mean(c.neck, nil),
		ShoulderTilt: stat.Mean(c.tilt, nil),
	}, nil
}

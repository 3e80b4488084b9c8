package posture

import (
	"errors"
	"fmt"
)

// Config holds the tunable parameters of the analysis pipeline.
type Config struct {
	// TorsoThreshold is the torso lean, in degrees, above which posture is bad.
	TorsoThreshold float64 `yaml:"torso_threshold"`
	// NeckThreshold is the forward head angle, in degrees, above which posture is bad.
	NeckThreshold float64 `yaml:"neck_threshold"`
	// ShoulderTiltThreshold is the shoulder roll, in degrees, above which posture is bad.
	ShoulderTiltThreshold float64 `yaml:"shoulder_tilt_threshold"`
	// SevereFactor multiplies TorsoThreshold to mark a severe slouch.
	SevereFactor float64 `yaml:"severe_factor"`
	// Alpha is the EMA coefficient in (0, 1].
	Alpha float64 `yaml:"ema_alpha"`
	// LockDistance is the largest centroid jump, in metres, still treated as the same person.
	LockDistance float64 `yaml:"lock_distance"`
}

// DefaultConfig returns the default analysis parameters.
func DefaultConfig() Config {
	return Config{
		TorsoThreshold:        8.0,
		NeckThreshold:         2.0,
		ShoulderTiltThreshold: 3.0,
		SevereFactor:          2.0,
		Alpha:                 0.23,
		LockDistance:          0.6,
	}
}

// Validate checks that every parameter is in range.
func (c Config) Validate() error {
	var errs []error
	if c.TorsoThreshold <= 0 {
		errs = append(errs, fmt.Errorf("torso threshold must be positive, got %g", c.TorsoThreshold))
	}
	if c.NeckThreshold <= 0 {
		errs = append(errs, fmt.Errorf("neck threshold must be positive, got %g", c.NeckThreshold))
	}
	if c.ShoulderTiltThreshold <= 0 {
		errs = append(errs, fmt.Errorf("shoulder tilt threshold must be positive, got %g", c.ShoulderTiltThreshold))
	}
	if c.SevereFactor < 1 {
		errs = append(errs, fmt.Errorf("severe factor must be at least 1, got %g", c.SevereFactor))
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		errs = append(errs, fmt.Errorf("ema alpha must be in (0, 1], got %g", c.Alpha))
	}
	if c.LockDistance <= 0 {
		errs = append(errs, fmt.Errorf("lock distance must be positive, got %g", c.LockDistance))
	}
	return errors.Join(errs...)
}

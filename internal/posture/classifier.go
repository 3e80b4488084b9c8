package posture

import "math"

// Verdict is the binary posture judgment.
type Verdict string

const (
	VerdictGood Verdict = "good"
	VerdictBad  Verdict = "bad"
)

// Category names why a posture is off.
type Category string

const (
	CategoryNormal       Category = "normal"
	CategorySlouch       Category = "slouch"
	CategorySevereSlouch Category = "severe_slouch"
	CategoryForwardHead  Category = "forward_head"
	CategoryShoulderTilt Category = "shoulder_tilt"
	// CategoryBadSlouch is written by older clients that graded slouching by
	// neck angle alone. It is accepted when reading logs but never produced.
	CategoryBadSlouch Category = "bad_slouch"
)

// Categories lists every category the log store accepts.
var Categories = []Category{
	CategoryNormal,
	CategorySlouch,
	CategorySevereSlouch,
	CategoryForwardHead,
	CategoryShoulderTilt,
	CategoryBadSlouch,
}

// Classifier applies the configured thresholds.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a Classifier for the given thresholds.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Judge returns VerdictBad when any feature exceeds its threshold.
// With a baseline, the deviation from the baseline is compared instead of
// the absolute angle.
func (c *Classifier) Judge(f Features, baseline *Baseline) Verdict {
	if baseline != nil {
		f = Features{
			TorsoAngle:   f.TorsoAngle - baseline.TorsoAngle,
			NeckAngle:    f.NeckAngle - baseline.NeckAngle,
			ShoulderTilt: f.ShoulderTilt - baseline.ShoulderTilt,
		}
	}

	bad := math.Abs(f.TorsoAngle) > c.cfg.TorsoThreshold ||
		math.Abs(f.NeckAngle) > c.cfg.NeckThreshold ||
		math.Abs(f.ShoulderTilt) > c.cfg.ShoulderTiltThreshold
	if bad {
		return VerdictBad
	}
	return VerdictGood
}

// Classify returns the first matching category, checked from the most severe.
func (c *Classifier) Classify(f Features) Category {
	torso := math.Abs(f.TorsoAngle)
	switch {
	case torso > c.cfg.TorsoThreshold*c.cfg.SevereFactor:
		return CategorySevereSlouch
	case torso > c.cfg.TorsoThreshold:
		return CategorySlouch
	case math.Abs(f.NeckAngle) > c.cfg.NeckThreshold:
		return CategoryForwardHead
	case math.Abs(f.ShoulderTilt) > c.cfg.ShoulderTiltThreshold:
		return CategoryShoulderTilt
	default:
		return CategoryNormal
	}
}

package posture

import (
	"errors"
	"testing"
)

func TestCalibrator_Finish(t *testing.T) {
	c := NewCalibrator()
	c.Add(Features{TorsoAngle: 10, NeckAngle: 2, ShoulderTilt: 1})
	c.Add(Features{TorsoAngle: 20, NeckAngle: 4, ShoulderTilt: 3})

	b, err := c.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	want := Baseline{TorsoAngle: 15, NeckAngle: 3, ShoulderTilt: 2}
	if !floatEqual(b.TorsoAngle, want.TorsoAngle) ||
		!floatEqual(b.NeckAngle, want.NeckAngle) ||
		!floatEqual(b.ShoulderTilt, want.ShoulderTilt) {
		t.Errorf("Finish() = %+v, want %+v", b, want)
	}
}

func TestCalibrator_Empty(t *testing.T) {
	c := NewCalibrator()

	_, err := c.Finish()
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("expected ErrInsufficientSamples, got %v", err)
	}
}

func TestCalibrator_SingleSample(t *testing.T) {
	c := NewCalibrator()
	c.Add(Features{TorsoAngle: -3.5, NeckAngle: 1.25, ShoulderTilt: 0})

	b, err := c.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if b.TorsoAngle != -3.5 || b.NeckAngle != 1.25 || b.ShoulderTilt != 0 {
		t.Errorf("Finish() = %+v", b)
	}
}

func TestCalibrator_Len(t *testing.T) {
	c := NewCalibrator()
	for i := 0; i < 7; i++ {
		c.Add(Features{})
	}
	if c.Len() != 7 {
		t.Errorf("Len() = %d, want 7", c.Len())
	}
}

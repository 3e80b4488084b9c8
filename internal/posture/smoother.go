package posture

// Smoother is an exponential moving average over a scalar signal.
// The zero value is not usable; create one with NewSmoother.
type Smoother struct {
	alpha float64
	value float64
	ready bool
}

// NewSmoother creates a Smoother with the given coefficient in (0, 1].
// Higher alpha follows the input more closely at the cost of more jitter.
func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: alpha}
}

// Update feeds a sample and returns the smoothed value.
// The first sample after creation or Reset is returned unchanged.
func (s *Smoother) Update(x float64) float64 {
	if !s.ready {
		s.value = x
		s.ready = true
		return s.value
	}
	s.value = s.alpha*x + (1-s.alpha)*s.value
	return s.value
}

// Value returns the current smoothed value and whether any sample has been seen.
func (s *Smoother) Value() (float64, bool) {
	return s.value, s.ready
}

// Reset discards all history.
func (s *Smoother) Reset() {
	s.value = 0
	s.ready = false
}

// featureSmoother keeps one independent Smoother per feature.
type featureSmoother struct {
	torso *Smoother
	neck  *Smoother
	tilt  *Smoother
}

func newFeatureSmoother(alpha float64) *featureSmoother {
	return &featureSmoother{
		torso: NewSmoother(alpha),
		neck:  NewSmoother(alpha),
		tilt:  NewSmoother(alpha),
	}
}

func (f *featureSmoother) Update(raw Features) Features {
	return Features{
		TorsoAngle:   f.torso.Update(raw.TorsoAngle),
		NeckAngle:    f.neck.Update(raw.NeckAngle),
		ShoulderTilt: f.tilt.Update(raw.ShoulderTilt),
	}
}

func (f *featureSmoother) Reset() {
	f.torso.Reset()
	f.neck.Reset()
	f.tilt.Reset()
}

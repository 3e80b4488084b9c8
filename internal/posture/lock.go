package posture

import "gonum.org/v1/gonum/spatial/r3"

// IdentityLock keeps consecutive frames on the same person by rejecting
// frames whose body centre jumps further than a threshold.
type IdentityLock struct {
	threshold float64
	center    r3.Vec
	locked    bool
}

// NewIdentityLock creates a lock that rejects jumps longer than threshold
// world units.
func NewIdentityLock(threshold float64) *IdentityLock {
	return &IdentityLock{threshold: threshold}
}

// Check reports whether the frame with this centroid belongs to the locked
// subject. An unlocked lock accepts anything and locks onto it. An accepted
// centroid becomes the new reference; a rejected one leaves it unchanged.
func (l *IdentityLock) Check(center r3.Vec) bool {
	if l.locked && r3.Norm(r3.Sub(center, l.center)) > l.threshold {
		return false
	}
	l.center = center
	l.locked = true
	return true
}

// Clear forgets the reference. The next subject seen becomes the new one.
func (l *IdentityLock) Clear() {
	l.center = r3.Vec{}
	l.locked = false
}

// Center returns the locked reference and whether the lock is held.
func (l *IdentityLock) Center() (r3.Vec, bool) {
	return l.center, l.locked
}

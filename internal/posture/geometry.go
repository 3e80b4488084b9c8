// Package posture turns pose skeletons into smoothed posture features and verdicts.
package posture

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/posture/internal/detector"
)

// minSegmentLength is the shortest torso or neck vector, in world units,
// that still yields a meaningful angle.
const minSegmentLength = 1e-4

// Features are the posture angles of one skeleton, in degrees.
type Features struct {
	TorsoAngle   float64 `json:"torso_angle"`
	NeckAngle    float64 `json:"neck_angle"`
	ShoulderTilt float64 `json:"shoulder_tilt"`
}

// Baseline is a user's reference posture captured by calibration.
type Baseline = Features

func vec(lm detector.Landmark) r3.Vec {
	return r3.Vec{X: lm.X, Y: lm.Y, Z: lm.Z}
}

func midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

// ShoulderCenter returns the midpoint between the shoulders in world coordinates.
func ShoulderCenter(world *[detector.NumLandmarks]detector.Landmark) r3.Vec {
	return midpoint(vec(world[detector.LeftShoulder]), vec(world[detector.RightShoulder]))
}

// Extract computes the posture angles from world landmarks.
// It reports false when the torso or neck segment is too short to measure.
//
// Torso and neck angles are measured from vertical in the y-z plane, the
// shoulder tilt from horizontal in the x-y plane.
func Extract(world *[detector.NumLandmarks]detector.Landmark) (Features, bool) {
	shoulder := ShoulderCenter(world)
	hip := midpoint(vec(world[detector.LeftHip]), vec(world[detector.RightHip]))
	nose := vec(world[detector.Nose])

	torso := r3.Sub(shoulder, hip)
	if r3.Norm(torso) < minSegmentLength {
		return Features{}, false
	}

	neck := r3.Sub(nose, shoulder)
	if r3.Norm(neck) < minSegmentLength {
		return Features{}, false
	}

	shoulders := r3.Sub(vec(world[detector.LeftShoulder]), vec(world[detector.RightShoulder]))

	return Features{
		TorsoAngle:   angleFromVertical(torso),
		NeckAngle:    angleFromVertical(neck),
		ShoulderTilt: angleFromHorizontal(shoulders),
	}, true
}

// angleFromVertical measures z against -y, since world y points down.
func angleFromVertical(v r3.Vec) float64 {
	return degrees(math.Atan2(v.Z, -v.Y))
}

func angleFromHorizontal(v r3.Vec) float64 {
	return degrees(math.Atan2(v.Y, v.X))
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

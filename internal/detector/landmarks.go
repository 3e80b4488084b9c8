// Package detector provides pose detection interfaces and types for posture analysis.
package detector

// Pose landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// PoseConnections lists the joint pairs drawn as the skeleton.
var PoseConnections = [][2]int{
	{LeftShoulder, LeftElbow}, {LeftElbow, LeftWrist},
	{RightShoulder, RightElbow}, {RightElbow, RightWrist},
	{LeftShoulder, RightShoulder},
	{LeftShoulder, LeftHip}, {RightShoulder, RightHip},
	{LeftHip, RightHip},
	{LeftHip, LeftKnee}, {LeftKnee, LeftAnkle},
	{RightHip, RightKnee}, {RightKnee, RightAnkle},
	{LeftAnkle, LeftHeel}, {LeftHeel, LeftFootIndex},
	{RightAnkle, RightHeel}, {RightHeel, RightFootIndex},
	{Nose, LeftShoulder}, {Nose, RightShoulder},
}

// Landmark is a single joint position with the detector's confidence scores.
type Landmark struct {
	X          float64 `json:"x" msgpack:"x"`
	Y          float64 `json:"y" msgpack:"y"`
	Z          float64 `json:"z" msgpack:"z"`
	Visibility float64 `json:"visibility" msgpack:"visibility"`
	Presence   float64 `json:"presence" msgpack:"presence"`
}

// Pose is one detected skeleton.
//
// Landmarks are normalized image coordinates (x, y in [0,1] from the top-left
// corner). WorldLandmarks are in metres with the origin between the hips and
// y pointing down.
type Pose struct {
	Landmarks      [NumLandmarks]Landmark `json:"landmarks"`
	WorldLandmarks [NumLandmarks]Landmark `json:"world_landmarks"`
	// HasImage is false when the detector only produced world coordinates.
	HasImage bool `json:"-"`
}

// Translate returns a copy of the pose with every world landmark shifted.
func (p *Pose) Translate(dx, dy, dz float64) *Pose {
	if p == nil {
		return nil
	}

	moved := *p
	for i := range moved.WorldLandmarks {
		moved.WorldLandmarks[i].X += dx
		moved.WorldLandmarks[i].Y += dy
		moved.WorldLandmarks[i].Z += dz
	}
	return &moved
}

// ImageLandmarks returns the image-space landmarks as a slice, or an empty
// slice when the detector did not report them.
func (p *Pose) ImageLandmarks() []Landmark {
	if p == nil || !p.HasImage {
		return []Landmark{}
	}
	return p.Landmarks[:]
}

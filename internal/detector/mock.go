package detector

import (
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	pose       *Pose
	err        error
	timestamps []int64
	closed     bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPose sets the pose that will be returned by Detect. Nil means nobody in frame.
func (m *MockDetector) SetPose(pose *Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = pose
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured pose or error and records the timestamp.
func (m *MockDetector) Detect(frame *gocv.Mat, timestampMs int64) (*Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timestamps = append(m.timestamps, timestampMs)
	if m.err != nil {
		return nil, m.err
	}
	if m.pose == nil {
		return nil, nil
	}
	pose := *m.pose
	return &pose, nil
}

// Timestamps returns the timestamps passed to Detect, in call order.
func (m *MockDetector) Timestamps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.timestamps...)
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Synthetic skeleton dimensions in metres.
const (
	torsoLength       = 0.5
	neckLength        = 0.25
	shoulderHalf      = 0.18
	hipHalf           = 0.1
	fixtureConfidence = 0.95
)

// PoseWithAngles builds a seated skeleton whose torso and neck lean the given
// number of degrees from vertical in the sagittal plane and whose shoulder
// line is rolled tiltDeg from horizontal. Hips are centred on the origin.
func PoseWithAngles(torsoDeg, neckDeg, tiltDeg float64) Pose {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	var world [NumLandmarks]Landmark
	set := func(i int, x, y, z float64) {
		world[i] = Landmark{X: x, Y: y, Z: z, Visibility: fixtureConfidence, Presence: fixtureConfidence}
	}

	// MediaPipe world y points down, so "up" is negative y.
	t, n, s := rad(torsoDeg), rad(neckDeg), rad(tiltDeg)
	smX, smY, smZ := 0.0, -torsoLength*math.Cos(t), torsoLength*math.Sin(t)
	noseX, noseY, noseZ := smX, smY-neckLength*math.Cos(n), smZ+neckLength*math.Sin(n)

	set(LeftHip, hipHalf, 0, 0)
	set(RightHip, -hipHalf, 0, 0)
	set(LeftShoulder, smX+shoulderHalf*math.Cos(s), smY+shoulderHalf*math.Sin(s), smZ)
	set(RightShoulder, smX-shoulderHalf*math.Cos(s), smY-shoulderHalf*math.Sin(s), smZ)
	set(Nose, noseX, noseY, noseZ)

	// Face points cluster around the nose.
	for i := LeftEyeInner; i <= MouthRight; i++ {
		side := 1.0
		if i >= RightEyeInner && i <= RightEyeOuter || i == RightEar || i == MouthRight {
			side = -1.0
		}
		set(i, noseX+side*0.03*float64(1+i%3), noseY-0.02+0.01*float64(i%4), noseZ+0.02)
	}

	// Arms hang alongside the torso, legs bent forward at the knee.
	ls, rs := world[LeftShoulder], world[RightShoulder]
	set(LeftElbow, ls.X+0.02, ls.Y+0.28, ls.Z)
	set(RightElbow, rs.X-0.02, rs.Y+0.28, rs.Z)
	set(LeftWrist, ls.X+0.02, ls.Y+0.5, ls.Z-0.15)
	set(RightWrist, rs.X-0.02, rs.Y+0.5, rs.Z-0.15)
	for i, base := range map[int]int{LeftPinky: LeftWrist, LeftIndex: LeftWrist, LeftThumb: LeftWrist,
		RightPinky: RightWrist, RightIndex: RightWrist, RightThumb: RightWrist} {
		b := world[base]
		set(i, b.X, b.Y+0.05, b.Z-0.03)
	}
	set(LeftKnee, hipHalf, 0.02, -0.4)
	set(RightKnee, -hipHalf, 0.02, -0.4)
	set(LeftAnkle, hipHalf, 0.42, -0.42)
	set(RightAnkle, -hipHalf, 0.42, -0.42)
	set(LeftHeel, hipHalf, 0.46, -0.38)
	set(RightHeel, -hipHalf, 0.46, -0.38)
	set(LeftFootIndex, hipHalf, 0.47, -0.52)
	set(RightFootIndex, -hipHalf, 0.47, -0.52)

	pose := Pose{WorldLandmarks: world, HasImage: true}
	for i, w := range world {
		pose.Landmarks[i] = Landmark{
			X:          0.5 + w.X*0.5,
			Y:          0.6 + w.Y*0.5,
			Z:          w.Z,
			Visibility: w.Visibility,
			Presence:   w.Presence,
		}
	}
	return pose
}

// UprightPose returns a preset pose sitting straight with level shoulders.
func UprightPose() *Pose {
	p := PoseWithAngles(0, 0, 0)
	return &p
}

// SlouchedPose returns a preset pose with the torso leaning 15 degrees.
func SlouchedPose() *Pose {
	p := PoseWithAngles(15, 0, 0)
	return &p
}

// SevereSlouchPose returns a preset pose with the torso leaning 25 degrees
// and the head pushed forward.
func SevereSlouchPose() *Pose {
	p := PoseWithAngles(25, 12, 0)
	return &p
}

// ForwardHeadPose returns a preset pose with an upright torso and the head
// 12 degrees ahead of the shoulders.
func ForwardHeadPose() *Pose {
	p := PoseWithAngles(0, 12, 0)
	return &p
}

// TiltedPose returns a preset pose with the shoulder line rolled 8 degrees.
func TiltedPose() *Pose {
	p := PoseWithAngles(0, 0, 8)
	return &p
}

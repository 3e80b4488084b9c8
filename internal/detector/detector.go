package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrNotAvailable is returned when the pose landmark service cannot be located.
var ErrNotAvailable = errors.New("pose landmark service not available")

// Detector defines the interface for pose detection implementations.
//
// Implementations run in video mode: timestampMs must strictly increase
// between calls on the same instance.
type Detector interface {
	// Detect analyzes a video frame and returns the detected pose.
	// Returns nil if no person is found.
	Detect(frame *gocv.Mat, timestampMs int64) (*Pose, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// ScriptPath is the Python landmark service. Empty means search the usual locations.
	ScriptPath string `yaml:"script_path"`

	// PythonPath is the interpreter. Empty means a venv interpreter or python3.
	PythonPath string `yaml:"python_path"`

	// ModelPath is the .task model file passed to the service.
	ModelPath string `yaml:"model_path"`

	// MinDetectionConf is the minimum pose detection confidence (0.0-1.0).
	MinDetectionConf float64 `yaml:"min_detection_confidence"`

	// MinTrackingConf is the minimum tracking confidence (0.0-1.0).
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/pose_landmarker_full.task",
		MinDetectionConf: 0.5,
		MinTrackingConf:  0.5,
	}
}

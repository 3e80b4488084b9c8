package detector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"gocv.io/x/gocv"
)

// idleShutdown is how long the Python process may sit unused before it is stopped.
const idleShutdown = 30 * time.Second

// maxMessageSize bounds a single response from the service.
const maxMessageSize = 16 << 20

// MediaPipeDetector implements Detector using a Python MediaPipe PoseLandmarker
// subprocess running in video mode.
//
// Requests and responses are msgpack documents framed by a 4-byte big-endian
// length. One process serves one tracking session.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	idleTimer  *time.Timer
	// idleGen identifies the current idle timer. A callback carrying an
	// older value lost a race with Detect and must not stop the process.
	idleGen uint64
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findPoseScript()
	}
	if scriptPath == "" {
		return nil, fmt.Errorf("pose_service.py: %w", ErrNotAvailable)
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
	}, nil
}

// detectRequest is the msgpack request sent to the service.
type detectRequest struct {
	Image       []byte `msgpack:"image"`
	TimestampMs int64  `msgpack:"timestamp_ms"`
}

// detectResponse is the msgpack response read from the service.
type detectResponse struct {
	Poses []wirePose `msgpack:"poses"`
	Error string     `msgpack:"error"`
}

type wirePose struct {
	Landmarks      []Landmark `msgpack:"landmarks"`
	WorldLandmarks []Landmark `msgpack:"world_landmarks"`
}

// Detect analyzes a frame and returns the first detected pose.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat, timestampMs int64) (*Pose, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	payload, err := msgpack.Marshal(detectRequest{
		Image:       buf.GetBytes(),
		TimestampMs: timestampMs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := writeMessage(d.stdin, payload); err != nil {
		d.abort()
		return nil, err
	}

	data, err := readMessage(d.stdout)
	if err != nil {
		d.abort()
		return nil, err
	}

	pose, err := decodeResponse(data)
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()
	return pose, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// writeMessage writes a length-prefixed message.
func writeMessage(w io.Writer, payload []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(payload)))

	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// readMessage reads one length-prefixed message.
func readMessage(r io.Reader) ([]byte, error) {
	length := make([]byte, 4)
	if _, err := io.ReadFull(r, length); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	n := binary.BigEndian.Uint32(length)
	if n > maxMessageSize {
		return nil, fmt.Errorf("response of %d bytes exceeds limit", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	return data, nil
}

// decodeResponse converts a service response into a Pose.
// Only the first pose is used; the service is configured for a single subject.
func decodeResponse(data []byte) (*Pose, error) {
	var resp detectResponse
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("pose service: %s", resp.Error)
	}

	if len(resp.Poses) == 0 || len(resp.Poses[0].WorldLandmarks) == 0 {
		return nil, nil
	}

	return resp.Poses[0].toPose(), nil
}

func (w wirePose) toPose() *Pose {
	pose := &Pose{HasImage: len(w.Landmarks) > 0}

	for i := 0; i < NumLandmarks && i < len(w.WorldLandmarks); i++ {
		pose.WorldLandmarks[i] = w.WorldLandmarks[i]
	}
	for i := 0; i < NumLandmarks && i < len(w.Landmarks); i++ {
		pose.Landmarks[i] = w.Landmarks[i]
	}

	return pose
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := d.config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.scriptPath,
		"--model", d.config.ModelPath,
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinDetectionConf, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// The service logs to stderr
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	slog.Info("pose service started",
		"script", d.scriptPath,
		"model", d.config.ModelPath,
		"pid", d.cmd.Process.Pid,
	)

	return nil
}

// abort kills a process whose stream is out of sync.
// A video-mode landmarker cannot resume mid-stream, so the next Detect starts fresh.
func (d *MediaPipeDetector) abort() {
	if !d.started {
		return
	}
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.shutdown()
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	d.idleGen++

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	slog.Debug("pose service stopped", "script", d.scriptPath)
	return err
}

// resetIdleTimer must be called with d.mu held.
func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleGen++
	gen := d.idleGen
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.idleExpired(gen)
	})
}

// idleExpired stops the process if gen is still the current idle timer.
// It reports whether the timer was current.
func (d *MediaPipeDetector) idleExpired(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.idleGen {
		return false
	}
	d.idleTimer = nil
	if err := d.shutdown(); err != nil {
		slog.Debug("pose service exited", "error", err)
	}
	return true
}

func findPoseScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/pose_service.py",
		"../scripts/pose_service.py",
		filepath.Join(execDir, "scripts/pose_service.py"),
		filepath.Join(os.Getenv("HOME"), ".posture/scripts/pose_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".posture/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"gocv.io/x/gocv"

	"github.com/ayusman/posture/internal/app"
	"github.com/ayusman/posture/internal/capture"
	"github.com/ayusman/posture/internal/detector"
	"github.com/ayusman/posture/internal/posture"
)

var errMissingImage = errors.New("missing image")

const postureUnknown = "unknown"

// AnalyzeResponse is the JSON body of an analysis result.
type AnalyzeResponse struct {
	Posture        string              `json:"posture"`
	PostureType    string              `json:"posture_type,omitempty"`
	Metrics        *metricsResponse    `json:"metrics,omitempty"`
	Landmarks      []detector.Landmark `json:"landmarks"`
	WorldLandmarks []detector.Landmark `json:"world_landmarks,omitempty"`
	Connections    [][2]int            `json:"connections,omitempty"`
	Timestamp      int64               `json:"timestamp,omitempty"`
	Calibrating    bool                `json:"calibrating,omitempty"`
	Samples        int                 `json:"samples,omitempty"`
}

// NewAnalyzeResponse builds the JSON body for one analysis result. A nil
// result yields the unknown-posture body.
func NewAnalyzeResponse(res *posture.Result) AnalyzeResponse {
	if res == nil {
		return AnalyzeResponse{Posture: postureUnknown, Landmarks: []detector.Landmark{}}
	}
	return AnalyzeResponse{
		Posture:        string(res.Verdict),
		PostureType:    string(res.Category),
		Metrics:        toMetrics(res.Features),
		Landmarks:      res.Pose.ImageLandmarks(),
		WorldLandmarks: res.Pose.WorldLandmarks[:],
		Connections:    detector.PoseConnections,
		Timestamp:      res.Timestamp,
		Calibrating:    res.Calibrating,
	}
}

type calibrateResponse struct {
	Status   string           `json:"status"`
	Baseline *metricsResponse `json:"baseline"`
}

// readImage decodes the "image" form file of a multipart request.
func (h *SessionHandler) readImage(w http.ResponseWriter, r *http.Request) (*gocv.Mat, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, errMissingImage
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errMissingImage
	}
	return capture.DecodeImage(data)
}

// analyzeStatus maps an analysis error to a status code. Anything that is
// not a session error came from the detector.
func analyzeStatus(err error) int {
	if status := statusFor(err); status != http.StatusInternalServerError {
		return status
	}
	return http.StatusBadGateway
}

// analyze handles POST /api/sessions/{id}/analyze.
func (h *SessionHandler) analyze(w http.ResponseWriter, r *http.Request, id string) {
	frame, err := h.readImage(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"posture": postureUnknown})
		return
	}
	defer frame.Close()

	res, err := h.service.Analyze(r.Context(), id, frame)
	if err != nil {
		slog.Warn("analyze failed", "session", id, "error", err)
		writeError(w, analyzeStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, NewAnalyzeResponse(res))
}

// calibrateOnce handles POST /api/sessions/{id}/calibrate, which calibrates
// from a single image.
func (h *SessionHandler) calibrateOnce(w http.ResponseWriter, r *http.Request, id string) {
	frame, err := h.readImage(w, r)
	if errors.Is(err, errMissingImage) {
		writeError(w, http.StatusBadRequest, "no image")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image")
		return
	}
	defer frame.Close()

	baseline, err := h.service.CalibrateOnce(id, frame)
	if errors.Is(err, app.ErrNoPose) {
		writeError(w, http.StatusBadRequest, "no pose detected")
		return
	}
	if err != nil {
		writeError(w, analyzeStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, calibrateResponse{
		Status:   "calibrated",
		Baseline: toRoundedMetrics(baseline),
	})
}

// beginCalibration handles POST /api/sessions/{id}/calibration.
func (h *SessionHandler) beginCalibration(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.BeginCalibration(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "calibrating"})
}

// cancelCalibration handles DELETE /api/sessions/{id}/calibration.
func (h *SessionHandler) cancelCalibration(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.CancelCalibration(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// calibrationFrame handles POST /api/sessions/{id}/calibration/frame.
func (h *SessionHandler) calibrationFrame(w http.ResponseWriter, r *http.Request, id string) {
	frame, err := h.readImage(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"posture": postureUnknown})
		return
	}
	defer frame.Close()

	res, samples, err := h.service.CalibrationFrame(id, frame)
	if err != nil {
		writeError(w, analyzeStatus(err), err.Error())
		return
	}

	resp := NewAnalyzeResponse(res)
	resp.Calibrating = true
	resp.Samples = samples
	writeJSON(w, http.StatusOK, resp)
}

// finishCalibration handles POST /api/sessions/{id}/calibration/finish.
func (h *SessionHandler) finishCalibration(w http.ResponseWriter, r *http.Request, id string) {
	baseline, err := h.service.FinishCalibration(id)
	if errors.Is(err, posture.ErrInsufficientSamples) {
		writeError(w, http.StatusConflict, "no calibration samples collected")
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, calibrateResponse{
		Status:   "calibrated",
		Baseline: toRoundedMetrics(baseline),
	})
}

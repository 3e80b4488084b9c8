// Package api provides HTTP API handlers for posture analysis sessions.
package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/ayusman/posture/internal/app"
	"github.com/ayusman/posture/internal/posture"
	"github.com/ayusman/posture/internal/session"
	"github.com/ayusman/posture/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, posture.ErrInsufficientSamples),
		errors.Is(err, app.ErrCalibrating):
		return http.StatusConflict
	case errors.Is(err, app.ErrNoStore):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

type metricsResponse struct {
	TorsoAngle   float64 `json:"torso_angle"`
	NeckAngle    float64 `json:"neck_angle"`
	ShoulderTilt float64 `json:"shoulder_tilt"`
}

func toMetrics(f posture.Features) *metricsResponse {
	return &metricsResponse{
		TorsoAngle:   f.TorsoAngle,
		NeckAngle:    f.NeckAngle,
		ShoulderTilt: f.ShoulderTilt,
	}
}

func toRoundedMetrics(f posture.Features) *metricsResponse {
	return &metricsResponse{
		TorsoAngle:   round3(f.TorsoAngle),
		NeckAngle:    round3(f.NeckAngle),
		ShoulderTilt: round3(f.ShoulderTilt),
	}
}

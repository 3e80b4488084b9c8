package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/posture/internal/store"
)

type logEntryResponse struct {
	ID           int64   `json:"id"`
	Posture      string  `json:"posture"`
	PostureType  string  `json:"posture_type"`
	TorsoAngle   float64 `json:"torso_angle"`
	NeckAngle    float64 `json:"neck_angle"`
	ShoulderTilt float64 `json:"shoulder_tilt"`
	CreatedAt    string  `json:"created_at"`
}

type logsResponse struct {
	SessionID string             `json:"session_id"`
	Page      int                `json:"page"`
	HasNext   bool               `json:"has_next"`
	Logs      []logEntryResponse `json:"logs"`
}

func toLogsResponse(id string, page store.Page) logsResponse {
	resp := logsResponse{
		SessionID: id,
		Page:      page.Number,
		HasNext:   page.HasNext,
		Logs:      make([]logEntryResponse, 0, len(page.Entries)),
	}
	for _, e := range page.Entries {
		resp.Logs = append(resp.Logs, logEntryResponse{
			ID:           e.ID,
			Posture:      string(e.Posture),
			PostureType:  string(e.PostureType),
			TorsoAngle:   e.TorsoAngle,
			NeckAngle:    e.NeckAngle,
			ShoulderTilt: e.ShoulderTilt,
			CreatedAt:    e.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return resp
}

// logs handles GET /api/sessions/{id}/logs?page=N.
func (h *SessionHandler) logs(w http.ResponseWriter, r *http.Request, id string) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid page number")
			return
		}
		page = n
	}

	result, err := h.service.Logs(id, page)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toLogsResponse(id, result))
}

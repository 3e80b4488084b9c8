package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/posture/internal/app"
)

// DefaultMaxUploadBytes caps uploaded images when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// SessionHandler handles HTTP requests for analysis sessions.
type SessionHandler struct {
	service   *app.Service
	maxUpload int64
}

// NewSessionHandler creates a SessionHandler. A non-positive maxUpload uses
// DefaultMaxUploadBytes.
func NewSessionHandler(svc *app.Service, maxUpload int64) *SessionHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &SessionHandler{service: svc, maxUpload: maxUpload}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/sessions, /api/sessions/{id} or /api/sessions/{id}/{action...}
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.create(w, r)
		return
	}

	id, action, _ := strings.Cut(path, "/")

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "analyze":
		h.requirePost(w, r, id, h.analyze)
	case "calibrate":
		h.requirePost(w, r, id, h.calibrateOnce)
	case "calibration":
		switch r.Method {
		case http.MethodPost:
			h.beginCalibration(w, r, id)
		case http.MethodDelete:
			h.cancelCalibration(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "calibration/frame":
		h.requirePost(w, r, id, h.calibrationFrame)
	case "calibration/finish":
		h.requirePost(w, r, id, h.finishCalibration)
	case "logs":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.logs(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *SessionHandler) requirePost(w http.ResponseWriter, r *http.Request, id string,
	fn func(http.ResponseWriter, *http.Request, string)) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fn(w, r, id)
}

type createSessionRequest struct {
	User string `json:"user"`
}

type sessionResponse struct {
	ID          string           `json:"id"`
	User        string           `json:"user"`
	CreatedAt   string           `json:"created_at"`
	Calibrating bool             `json:"calibrating"`
	Samples     int              `json:"samples"`
	Baseline    *metricsResponse `json:"baseline"`
}

func toSessionResponse(st app.Status) sessionResponse {
	resp := sessionResponse{
		ID:          st.ID,
		User:        st.User,
		CreatedAt:   st.CreatedAt.Format(time.RFC3339),
		Calibrating: st.Calibrating,
		Samples:     st.Samples,
	}
	if st.Baseline != nil {
		resp.Baseline = toRoundedMetrics(*st.Baseline)
	}
	return resp
}

// create handles POST /api/sessions and starts a new session.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.User == "" {
		writeError(w, http.StatusBadRequest, "User is required")
		return
	}

	sess, err := h.service.StartSession(req.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	st, err := h.service.Status(sess.ID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(st))
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	st, err := h.service.Status(id)
	if err != nil {
		writeError(w, statusFor(err), "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(st))
}

// delete handles DELETE /api/sessions/{id} and ends the session.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.EndSession(id); err != nil {
		writeError(w, statusFor(err), "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

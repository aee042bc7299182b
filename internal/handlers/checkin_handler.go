package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/carecheck/internal/analytics"
	pkghttp "github.com/BradenHooton/carecheck/pkg/http"
)

const maxCheckInBodyBytes = 4 << 10

// CheckInHandler records patient arrivals submitted by the tablet's check-in form
type CheckInHandler struct {
	recorder analytics.Recorder
	now      func() time.Time
	logger   *slog.Logger
}

// NewCheckInHandler creates a new CheckInHandler. A nil now uses time.Now.
func NewCheckInHandler(recorder analytics.Recorder, now func() time.Time, logger *slog.Logger) *CheckInHandler {
	if now == nil {
		now = time.Now
	}
	return &CheckInHandler{recorder: recorder, now: now, logger: logger}
}

// CheckInRequest represents one arrival at the tablet
type CheckInRequest struct {
	PatientRef  string `json:"patient_ref" validate:"required,max=64"`
	CareTeam    string `json:"care_team" validate:"required,max=64"`
	WaitSeconds int    `json:"wait_seconds" validate:"gte=0,lte=86400"`
}

// CheckInResponse acknowledges a recorded arrival
type CheckInResponse struct {
	ArrivedAt time.Time `json:"arrived_at"`
}

// Record handles POST /checkins
func (h *CheckInHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckInBodyBytes)).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	arrived := h.now().UTC()
	h.recorder.Record(analytics.CheckIn{
		PatientRef: req.PatientRef,
		CareTeam:   req.CareTeam,
		ArrivedAt:  arrived,
		WaitTime:   time.Duration(req.WaitSeconds) * time.Second,
	})
	h.logger.Debug("check-in recorded", slog.String("care_team", req.CareTeam))

	pkghttp.WriteJSON(w, http.StatusCreated, CheckInResponse{ArrivedAt: arrived})
}

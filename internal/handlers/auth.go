package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/BradenHooton/carecheck/internal/access"
	"github.com/BradenHooton/carecheck/internal/auth"
	pkghttp "github.com/BradenHooton/carecheck/pkg/http"
	pkglogger "github.com/BradenHooton/carecheck/pkg/logger"
)

const maxLoginBodyBytes = 4 << 10

// LoginEvaluator decides whether a credential pair may unlock the admin surface
type LoginEvaluator interface {
	Authenticate(username, password string) access.Verdict
	LockoutRemaining() (time.Duration, bool)
}

// SessionController is the session guard as seen by the navigation layer
type SessionController interface {
	Unlock(v access.Verdict) error
	Lock()
	CheckExpiry() bool
	Status() access.GuardStatus
	WillResignActive()
	DidBecomeActive() bool
}

// AuthHandler handles admin sign-in and session lifecycle requests
type AuthHandler struct {
	throttle LoginEvaluator
	guard    SessionController
	timing   *auth.TimingDelay
	audit    *pkglogger.AuditLogger
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	throttle LoginEvaluator,
	guard SessionController,
	timing *auth.TimingDelay,
	audit *pkglogger.AuditLogger,
	ipConfig *pkghttp.IPConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		throttle: throttle,
		guard:    guard,
		timing:   timing,
		audit:    audit,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// LoginRequest represents the request body for admin sign-in
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// SessionResponse describes the admin session state
type SessionResponse struct {
	Unlocked             bool   `json:"unlocked"`
	SessionID            string `json:"session_id,omitempty"`
	IdleRemainingSeconds int    `json:"idle_remaining_seconds"`
	IdleTimeoutSeconds   int    `json:"idle_timeout_seconds"`
}

// LockoutResponse answers the pre-check shown before the sign-in form
type LockoutResponse struct {
	LockedOut         bool `json:"locked_out"`
	RetryAfterSeconds int  `json:"retry_after_seconds"`
}

// Login handles POST /admin/login
// An already unlocked session is returned as is without evaluating credentials.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.guard.CheckExpiry()
	if status := h.guard.Status(); status.Unlocked {
		pkghttp.WriteJSON(w, http.StatusOK, sessionResponse(status))
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	start := time.Now()
	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	verdict := h.throttle.Authenticate(req.Username, req.Password)

	h.audit.LogAuthAttempt(pkglogger.AuthAttemptEvent{
		Username:          req.Username,
		Outcome:           verdict.Kind().String(),
		AttemptsRemaining: verdict.AttemptsRemaining(),
		RetryAfter:        verdict.RetryAfter(),
		IPAddress:         ipAddress,
		UserAgent:         r.UserAgent(),
		Success:           verdict.Succeeded(),
	})

	switch verdict.Kind() {
	case access.VerdictSuccess:
		if err := h.guard.Unlock(verdict); err != nil {
			h.logger.Error("unlock after successful login failed", slog.Any("error", err))
			if errors.Is(err, access.ErrGuardClosed) {
				pkghttp.WriteError(w, http.StatusServiceUnavailable, "shutting_down", "Service is shutting down")
				return
			}
			pkghttp.WriteInternalError(w, "Failed to unlock admin session")
			return
		}

		h.timing.WaitFrom(r.Context(), start, true)

		status := h.guard.Status()
		h.audit.LogSessionEvent(pkglogger.SessionEvent{
			EventType: "unlock",
			SessionID: status.SessionID,
			IPAddress: ipAddress,
		})
		pkghttp.WriteJSON(w, http.StatusOK, sessionResponse(status))

	case access.VerdictInvalid:
		h.timing.WaitFrom(r.Context(), start, false)
		pkghttp.WriteInvalidCredentials(w, verdict.AttemptsRemaining())

	case access.VerdictRateLimited:
		pkghttp.WriteRateLimited(w, verdict.RetryAfterSeconds())

	case access.VerdictLocked:
		pkghttp.WriteLockedOut(w, verdict.RetryAfterSeconds())

	default:
		h.logger.Error("login produced an unknown verdict", slog.String("verdict", verdict.Kind().String()))
		pkghttp.WriteInternalError(w, "Failed to evaluate login")
	}
}

// Lock handles POST /admin/lock
func (h *AuthHandler) Lock(w http.ResponseWriter, r *http.Request) {
	if sessionID := h.guard.Status().SessionID; sessionID != "" {
		h.audit.LogSessionEvent(pkglogger.SessionEvent{
			EventType: "lock_requested",
			SessionID: sessionID,
			IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		})
	}

	h.guard.Lock()
	pkghttp.WriteJSON(w, http.StatusOK, sessionResponse(h.guard.Status()))
}

// Activity handles POST /admin/activity. The activity itself is recorded by
// auth.TrackActivity; this reports the refreshed session.
func (h *AuthHandler) Activity(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, sessionResponse(h.guard.Status()))
}

// Status handles GET /admin/status
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.guard.CheckExpiry()
	pkghttp.WriteJSON(w, http.StatusOK, sessionResponse(h.guard.Status()))
}

// LockoutStatus handles GET /admin/lockout. It never counts as an attempt.
func (h *AuthHandler) LockoutStatus(w http.ResponseWriter, r *http.Request) {
	remaining, locked := h.throttle.LockoutRemaining()
	resp := LockoutResponse{LockedOut: locked}
	if locked {
		resp.RetryAfterSeconds = ceilSeconds(remaining)
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Resign handles POST /admin/lifecycle/resign, sent when the tablet app is backgrounded
func (h *AuthHandler) Resign(w http.ResponseWriter, r *http.Request) {
	h.guard.WillResignActive()
	w.WriteHeader(http.StatusNoContent)
}

// Resume handles POST /admin/lifecycle/resume, sent when the tablet app returns
// to the foreground. An elapsed idle window locks immediately.
func (h *AuthHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.guard.DidBecomeActive()
	pkghttp.WriteJSON(w, http.StatusOK, sessionResponse(h.guard.Status()))
}

func sessionResponse(status access.GuardStatus) SessionResponse {
	resp := SessionResponse{
		Unlocked:           status.Unlocked,
		IdleTimeoutSeconds: ceilSeconds(status.Timeout),
	}
	if status.Unlocked {
		resp.SessionID = status.SessionID
		resp.IdleRemainingSeconds = ceilSeconds(status.IdleRemaining)
	}
	return resp
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

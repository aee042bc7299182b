package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/carecheck/internal/analytics"
	"github.com/BradenHooton/carecheck/internal/auth"
	pkghttp "github.com/BradenHooton/carecheck/pkg/http"
)

const (
	defaultAnalyticsDays = 7
	maxAnalyticsDays     = 90
)

// AdminHandler serves the analytics dashboard. Routes using it must sit behind
// auth.RequireUnlocked.
type AdminHandler struct {
	source analytics.Source
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(source analytics.Source, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{source: source, logger: logger}
}

// GetAnalytics handles GET /admin/analytics
// Accepts optional query param ?days=N (1–90, default 7).
func (h *AdminHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	days := defaultAnalyticsDays
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > maxAnalyticsDays {
			pkghttp.WriteBadRequest(w, "days must be between 1 and 90")
			return
		}
		days = n
	}

	summary, err := h.source.Summary(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidRange) {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		sessionID, _ := auth.SessionIDFromContext(r.Context())
		h.logger.Error("analytics summary failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to retrieve analytics")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, summary)
}

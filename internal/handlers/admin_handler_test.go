package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/carecheck/internal/analytics"
	"github.com/BradenHooton/carecheck/internal/handlers"
	"github.com/stretchr/testify/assert"
)

// mockSource implements analytics.Source for testing
type mockSource struct {
	SummaryFunc func(ctx context.Context, window time.Duration) (*analytics.Summary, error)
	lastWindow  time.Duration
}

func (m *mockSource) Summary(ctx context.Context, window time.Duration) (*analytics.Summary, error) {
	m.lastWindow = window
	if m.SummaryFunc == nil {
		return &analytics.Summary{CheckInsByTeam: map[string]int{}, DailyCheckIns: []analytics.DailyCount{}}, nil
	}
	return m.SummaryFunc(ctx, window)
}

func getAnalytics(h *handlers.AdminHandler, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.GetAnalytics(w, withSession(httptest.NewRequest(http.MethodGet, url, nil), "session-1"))
	return w
}

func TestGetAnalytics_DefaultWindow(t *testing.T) {
	source := &mockSource{
		SummaryFunc: func(ctx context.Context, window time.Duration) (*analytics.Summary, error) {
			return &analytics.Summary{TotalCheckIns: 42, UniquePatients: 30}, nil
		},
	}
	h := handlers.NewAdminHandler(source, discardLogger())

	w := getAnalytics(h, "/admin/analytics")

	var resp analytics.Summary
	assertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, 42, resp.TotalCheckIns)
	assert.Equal(t, 30, resp.UniquePatients)
	assert.Equal(t, 7*24*time.Hour, source.lastWindow)
}

func TestGetAnalytics_CustomWindow(t *testing.T) {
	source := &mockSource{}
	h := handlers.NewAdminHandler(source, discardLogger())

	w := getAnalytics(h, "/admin/analytics?days=30")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30*24*time.Hour, source.lastWindow)
}

func TestGetAnalytics_InvalidDays_Returns400(t *testing.T) {
	h := handlers.NewAdminHandler(&mockSource{}, discardLogger())

	for _, q := range []string{"0", "91", "-3", "week"} {
		w := getAnalytics(h, "/admin/analytics?days="+q)
		assertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	}
}

func TestGetAnalytics_SourceError_Returns500(t *testing.T) {
	source := &mockSource{
		SummaryFunc: func(ctx context.Context, window time.Duration) (*analytics.Summary, error) {
			return nil, errors.New("store unavailable")
		},
	}
	h := handlers.NewAdminHandler(source, discardLogger())

	w := getAnalytics(h, "/admin/analytics")

	assertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/carecheck/internal/access"
	"github.com/BradenHooton/carecheck/internal/auth"
	"github.com/BradenHooton/carecheck/internal/clock"
	"github.com/BradenHooton/carecheck/internal/handlers"
	pkghttp "github.com/BradenHooton/carecheck/pkg/http"
	pkglogger "github.com/BradenHooton/carecheck/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdmin    = "frontdesk"
	testPassword = "Triage-Desk-2291"
	testTimeout  = 2 * time.Minute
)

var epoch = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture wires a real throttle and guard to a manual clock
type fixture struct {
	clock    *clock.Manual
	throttle *access.LoginThrottle
	guard    *access.SessionGuard
	handler  *handlers.AuthHandler

	mu      sync.Mutex
	revoked []access.RevokeReason
}

func newFixture(t *testing.T, config access.ThrottleConfig) *fixture {
	t.Helper()

	creds, err := access.NewStaticCredentials(testAdmin, testPassword, "")
	require.NoError(t, err)

	f := &fixture{clock: clock.NewManual(epoch)}
	f.throttle = access.NewLoginThrottle(config, creds,
		access.WithThrottleClock(f.clock),
		access.WithThrottleLogger(discardLogger()))
	f.guard = access.NewSessionGuard(access.GuardConfig{Timeout: testTimeout},
		access.WithGuardClock(f.clock),
		access.WithGuardLogger(discardLogger()),
		access.WithSessionIDs(func() string { return "session-1" }))
	f.guard.OnRevoked(func(reason access.RevokeReason) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.revoked = append(f.revoked, reason)
	})
	t.Cleanup(f.guard.Close)

	f.useTiming(auth.TimingConfig{})
	return f
}

// useTiming rebuilds the handler with the given response padding
func (f *fixture) useTiming(config auth.TimingConfig) {
	f.handler = handlers.NewAuthHandler(
		f.throttle,
		f.guard,
		auth.NewTimingDelay(config),
		pkglogger.NewAuditLogger(discardLogger(), "test"),
		nil,
		discardLogger(),
	)
}

func (f *fixture) revocations() []access.RevokeReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]access.RevokeReason(nil), f.revoked...)
}

func (f *fixture) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.Login(w, newJSONRequest(t, http.MethodPost, "/admin/login", handlers.LoginRequest{
		Username: username,
		Password: password,
	}))
	return w
}

// newJSONRequest creates an HTTP request with JSON body for testing
func newJSONRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withSession marks a request as having passed auth.RequireUnlocked
func withSession(req *http.Request, sessionID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), auth.SessionContextKey, sessionID))
}

// assertJSONResponse checks that response has correct status and decodes JSON body
func assertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// assertErrorResponse checks that response is a valid error response
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

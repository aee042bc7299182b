package auth

import (
	"context"
	"net/http"

	"github.com/BradenHooton/carecheck/internal/access"
	pkghttp "github.com/BradenHooton/carecheck/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing the admin session id in context
	SessionContextKey contextKey = "admin_session"
)

// SessionGate is the part of the session guard the HTTP layer depends on
type SessionGate interface {
	CheckExpiry() bool
	Status() access.GuardStatus
	RecordActivity()
}

// RequireUnlocked rejects requests while the admin surface is locked. The
// guard is re-validated against the clock first so a session past its idle
// deadline is revoked here rather than served.
func RequireUnlocked(gate SessionGate) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gate.CheckExpiry()

			status := gate.Status()
			if !status.Unlocked {
				pkghttp.WriteSessionLocked(w)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, status.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TrackActivity reports every request that reaches the admin surface as user
// activity, pushing the idle deadline out. Mount it behind RequireUnlocked.
func TrackActivity(gate SessionGate) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gate.RecordActivity()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionIDFromContext returns the admin session id stored by RequireUnlocked
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionContextKey).(string)
	return id, ok && id != ""
}

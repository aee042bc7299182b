package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuthAttemptEvent describes one admin login attempt. It never carries the password.
type AuthAttemptEvent struct {
	Username          string
	Outcome           string
	AttemptsRemaining int
	RetryAfter        time.Duration
	IPAddress         string
	UserAgent         string
	Success           bool
}

// SessionEvent describes an admin session transition
type SessionEvent struct {
	EventType string // unlock, lock, revoked
	SessionID string
	Reason    string
	IPAddress string
}

// AuditLogger writes security audit lines through the application logger
type AuditLogger struct {
	logger *slog.Logger
	env    string
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger, env string) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		env:    env,
		now:    time.Now,
	}
}

// LogAuthAttempt logs an admin login verdict
func (al *AuditLogger) LogAuthAttempt(event AuthAttemptEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", "admin_login"),
		slog.String("outcome", event.Outcome),
		slog.Bool("success", event.Success),
		RedactedAttr("username", SanitizedUsername(event.Username), al.env),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.AttemptsRemaining > 0 {
		attrs = append(attrs, slog.Int("attempts_remaining", event.AttemptsRemaining))
	}
	if event.RetryAfter > 0 {
		attrs = append(attrs, slog.Duration("retry_after", event.RetryAfter))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogSessionEvent logs an unlock or lock of the admin surface
func (al *AuditLogger) LogSessionEvent(event SessionEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "session"),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

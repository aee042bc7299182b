package access

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/carecheck/internal/clock"
	"github.com/google/uuid"
)

const (
	// DefaultSessionTimeout is the idle window used when nothing is configured
	DefaultSessionTimeout = 5 * time.Minute

	// MinSessionTimeout is the floor for any configured idle window
	MinSessionTimeout = 5 * time.Second
)

var (
	// ErrUnlockWithoutSuccess is returned when Unlock is called with anything other
	// than an unredeemed Success verdict. The guard stays locked.
	ErrUnlockWithoutSuccess = errors.New("unlock requires a successful login verdict")

	// ErrGuardClosed is returned by Unlock after Close
	ErrGuardClosed = errors.New("session guard is closed")
)

// RevokeReason says why an unlocked session ended
type RevokeReason int

const (
	RevokeManual RevokeReason = iota + 1
	RevokeIdle
	RevokeTeardown
)

func (r RevokeReason) String() string {
	switch r {
	case RevokeManual:
		return "manual"
	case RevokeIdle:
		return "idle_timeout"
	case RevokeTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// GuardConfig holds the session guard settings
type GuardConfig struct {
	Timeout time.Duration
}

// GuardStatus is a consistent snapshot of the session state
type GuardStatus struct {
	Unlocked       bool
	SessionID      string
	LastActivityAt time.Time
	IdleRemaining  time.Duration
	Timeout        time.Duration
}

// SessionGuard gates the admin analytics surface. It starts locked, unlocks only
// on a successful login verdict, and locks itself after the idle window.
type SessionGuard struct {
	mu     sync.Mutex
	clock  clock.Clock
	logger *slog.Logger
	newID  func() string

	timeout        time.Duration
	unlocked       bool
	sessionID      string
	lastActivityAt time.Time
	resignedAt     time.Time

	timer      clock.Timer
	generation uint64
	closed     bool

	onRevoked func(RevokeReason)
}

// GuardOption configures a SessionGuard
type GuardOption func(*SessionGuard)

// WithGuardClock replaces the system clock
func WithGuardClock(c clock.Clock) GuardOption {
	return func(g *SessionGuard) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithGuardLogger sets the logger for session transitions
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *SessionGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithSessionIDs overrides session id generation
func WithSessionIDs(fn func() string) GuardOption {
	return func(g *SessionGuard) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// NewSessionGuard creates a locked guard
func NewSessionGuard(config GuardConfig, opts ...GuardOption) *SessionGuard {
	g := &SessionGuard{
		clock:   clock.System(),
		logger:  slog.Default(),
		newID:   uuid.NewString,
		timeout: ClampSessionTimeout(config.Timeout),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ClampSessionTimeout applies the default for unset values and the minimum floor
func ClampSessionTimeout(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultSessionTimeout
	}
	if d < MinSessionTimeout {
		return MinSessionTimeout
	}
	return d
}

// OnRevoked registers the notification fired on every unlocked to locked
// transition. It replaces any previous registration and runs without the
// guard's lock held.
func (g *SessionGuard) OnRevoked(fn func(RevokeReason)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onRevoked = fn
}

// IsUnlocked reports whether access is currently granted. A session past its
// idle deadline reads as locked even if the timer has not fired yet.
func (g *SessionGuard) IsUnlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked && !g.expiredLocked(g.clock.Now())
}

// Unlock grants access for a Success verdict. A verdict unlocks at most once.
// A previous session that went idle without its timer firing is revoked first,
// so its onRevoked notification is never lost.
func (g *SessionGuard) Unlock(v Verdict) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrGuardClosed
	}

	now := g.clock.Now()
	var notify func(RevokeReason)
	if g.unlocked && g.expiredLocked(now) {
		notify = g.revokeLocked(RevokeIdle)
	}

	err := g.unlockLocked(v, now)
	g.mu.Unlock()

	if notify != nil {
		notify(RevokeIdle)
	}
	return err
}

func (g *SessionGuard) unlockLocked(v Verdict, now time.Time) error {
	if v.kind != VerdictSuccess || !v.grant.redeem() {
		g.logger.Error("admin unlock refused: no successful login verdict",
			slog.String("verdict", v.kind.String()))
		return ErrUnlockWithoutSuccess
	}

	g.unlocked = true
	g.sessionID = g.newID()
	g.lastActivityAt = now
	g.armLocked(g.timeout)

	g.logger.Info("admin session unlocked",
		slog.String("session_id", g.sessionID),
		slog.Duration("idle_timeout", g.timeout))
	return nil
}

// Lock revokes access. Locking an already locked guard does nothing.
func (g *SessionGuard) Lock() {
	g.mu.Lock()
	notify := g.revokeLocked(RevokeManual)
	g.mu.Unlock()

	if notify != nil {
		notify(RevokeManual)
	}
}

// RecordActivity pushes the idle deadline out. Activity reported after the
// deadline has passed locks instead of extending.
func (g *SessionGuard) RecordActivity() {
	g.mu.Lock()
	if !g.unlocked || g.closed {
		g.mu.Unlock()
		return
	}

	now := g.clock.Now()
	if g.expiredLocked(now) {
		notify := g.revokeLocked(RevokeIdle)
		g.mu.Unlock()
		if notify != nil {
			notify(RevokeIdle)
		}
		return
	}

	g.lastActivityAt = now
	g.armLocked(g.timeout)
	g.mu.Unlock()
}

// ConfigureTimeout sets the idle window for future arming. An armed timer keeps
// its deadline; it re-checks against the new window when it fires.
func (g *SessionGuard) ConfigureTimeout(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timeout = ClampSessionTimeout(d)
}

// Timeout returns the configured idle window
func (g *SessionGuard) Timeout() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timeout
}

// CheckExpiry re-validates the session against the clock and locks it if the
// idle window has elapsed. It returns true when this call revoked the session.
func (g *SessionGuard) CheckExpiry() bool {
	g.mu.Lock()
	if !g.unlocked || !g.expiredLocked(g.clock.Now()) {
		g.mu.Unlock()
		return false
	}
	notify := g.revokeLocked(RevokeIdle)
	g.mu.Unlock()

	if notify != nil {
		notify(RevokeIdle)
	}
	return true
}

// WillResignActive records that the host is going to the background, where
// timers may not fire
func (g *SessionGuard) WillResignActive() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.unlocked {
		return
	}
	g.resignedAt = g.clock.Now()
	g.logger.Debug("admin session backgrounded",
		slog.String("session_id", g.sessionID),
		slog.Time("last_activity_at", g.lastActivityAt))
}

// DidBecomeActive re-evaluates expiry immediately on return to the foreground
// and re-arms the timer for whatever remains of the window. It returns true if
// the session was revoked.
func (g *SessionGuard) DidBecomeActive() bool {
	g.mu.Lock()
	resignedAt := g.resignedAt
	g.resignedAt = time.Time{}
	if !g.unlocked || g.closed {
		g.mu.Unlock()
		return false
	}

	now := g.clock.Now()
	if !resignedAt.IsZero() {
		g.logger.Debug("admin session foregrounded",
			slog.String("session_id", g.sessionID),
			slog.Duration("backgrounded_for", now.Sub(resignedAt)))
	}
	if g.expiredLocked(now) {
		notify := g.revokeLocked(RevokeIdle)
		g.mu.Unlock()
		if notify != nil {
			notify(RevokeIdle)
		}
		return true
	}

	g.armLocked(g.timeout - now.Sub(g.lastActivityAt))
	g.mu.Unlock()
	return false
}

// Status returns a snapshot of the session
func (g *SessionGuard) Status() GuardStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	status := GuardStatus{Timeout: g.timeout}
	if !g.unlocked || g.expiredLocked(now) {
		return status
	}

	status.Unlocked = true
	status.SessionID = g.sessionID
	status.LastActivityAt = g.lastActivityAt
	status.IdleRemaining = g.timeout - now.Sub(g.lastActivityAt)
	return status
}

// Close tears the guard down. The idle timer is cancelled and no callback
// fires afterwards; the guard cannot be unlocked again.
func (g *SessionGuard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	g.closed = true
	if g.unlocked {
		g.logger.Info("admin session torn down",
			slog.String("session_id", g.sessionID),
			slog.String("reason", RevokeTeardown.String()))
	}
	g.clearLocked()
}

func (g *SessionGuard) expiredLocked(now time.Time) bool {
	return now.Sub(g.lastActivityAt) >= g.timeout
}

// armLocked cancels any pending timer and schedules a new one. The generation
// counter turns callbacks from cancelled timers into no-ops.
func (g *SessionGuard) armLocked(d time.Duration) {
	if g.timer != nil {
		g.timer.Stop()
	}
	g.generation++
	gen := g.generation
	g.timer = g.clock.AfterFunc(d, func() { g.fire(gen) })
}

func (g *SessionGuard) fire(gen uint64) {
	g.mu.Lock()
	if g.closed || !g.unlocked || gen != g.generation {
		g.mu.Unlock()
		return
	}

	now := g.clock.Now()
	elapsed := now.Sub(g.lastActivityAt)
	if elapsed < g.timeout {
		// Fired early relative to the clock; wait out the remainder
		g.armLocked(g.timeout - elapsed)
		g.mu.Unlock()
		return
	}

	notify := g.revokeLocked(RevokeIdle)
	g.mu.Unlock()
	if notify != nil {
		notify(RevokeIdle)
	}
}

// revokeLocked performs the unlocked to locked transition and returns the
// callback to run once the lock is released. It returns nil if already locked.
func (g *SessionGuard) revokeLocked(reason RevokeReason) func(RevokeReason) {
	if !g.unlocked {
		return nil
	}

	g.logger.Info("admin session revoked",
		slog.String("session_id", g.sessionID),
		slog.String("reason", reason.String()))

	g.clearLocked()
	return g.onRevoked
}

func (g *SessionGuard) clearLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.generation++
	g.unlocked = false
	g.sessionID = ""
	g.lastActivityAt = time.Time{}
	g.resignedAt = time.Time{}
}

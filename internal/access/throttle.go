package access

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/carecheck/internal/clock"
)

const (
	DefaultMaxFailuresBeforeLockout = 5
	DefaultMinimumAttemptSpacing    = 1 * time.Second
	DefaultBaseLockout              = 30 * time.Second
	DefaultMaxLockout               = 15 * time.Minute
)

// ThrottleConfig holds the brute-force policy for the admin login prompt
type ThrottleConfig struct {
	MaxFailuresBeforeLockout int
	MinimumAttemptSpacing    time.Duration // 0 disables spacing
	BaseLockout              time.Duration
	MaxLockout               time.Duration // ceiling for escalation
	// ResetFailuresOnLockout clears the failure count when a lockout triggers.
	// When false every failure at or past the threshold triggers another strike.
	ResetFailuresOnLockout bool
}

// DefaultThrottleConfig returns the policy used when nothing is configured
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MaxFailuresBeforeLockout: DefaultMaxFailuresBeforeLockout,
		MinimumAttemptSpacing:    DefaultMinimumAttemptSpacing,
		BaseLockout:              DefaultBaseLockout,
		MaxLockout:               DefaultMaxLockout,
		ResetFailuresOnLockout:   true,
	}
}

func (c ThrottleConfig) normalized() ThrottleConfig {
	if c.MaxFailuresBeforeLockout < 1 {
		c.MaxFailuresBeforeLockout = 1
	}
	if c.MinimumAttemptSpacing < 0 {
		c.MinimumAttemptSpacing = 0
	}
	if c.BaseLockout <= 0 {
		c.BaseLockout = DefaultBaseLockout
	}
	if c.MaxLockout < c.BaseLockout {
		c.MaxLockout = c.BaseLockout
	}
	return c
}

// ThrottleSnapshot is a read-only copy of the throttle state
type ThrottleSnapshot struct {
	ConsecutiveFailures int
	LockoutStrikes      int
	LockoutUntil        time.Time // zero when no lockout is recorded
	LastAttemptAt       time.Time // zero before the first evaluated attempt
}

// AttemptObserver is notified of every verdict, after the throttle state is updated
type AttemptObserver func(username string, v Verdict)

// LoginThrottle validates admin credentials and enforces lockout and attempt spacing
type LoginThrottle struct {
	mu     sync.Mutex
	config ThrottleConfig
	creds  CredentialMatcher
	clock  clock.Clock
	logger *slog.Logger

	observer AttemptObserver

	consecutiveFailures int
	lockoutStrikes      int
	lockoutUntil        time.Time
	lastAttemptAt       time.Time
}

// ThrottleOption configures a LoginThrottle
type ThrottleOption func(*LoginThrottle)

// WithThrottleClock replaces the system clock
func WithThrottleClock(c clock.Clock) ThrottleOption {
	return func(t *LoginThrottle) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithThrottleLogger sets the logger for lockout events
func WithThrottleLogger(logger *slog.Logger) ThrottleOption {
	return func(t *LoginThrottle) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithAttemptObserver registers a callback for every verdict (used for audit logging)
func WithAttemptObserver(fn AttemptObserver) ThrottleOption {
	return func(t *LoginThrottle) {
		t.observer = fn
	}
}

// NewLoginThrottle creates a throttle with empty state
func NewLoginThrottle(config ThrottleConfig, creds CredentialMatcher, opts ...ThrottleOption) *LoginThrottle {
	t := &LoginThrottle{
		config: config.normalized(),
		creds:  creds,
		clock:  clock.System(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Authenticate evaluates one attempt. Checks run in a fixed order:
// active lockout, attempt spacing, then credentials.
func (t *LoginThrottle) Authenticate(username, password string) Verdict {
	v := t.evaluate(username, password)
	if t.observer != nil {
		t.observer(username, v)
	}
	return v
}

func (t *LoginThrottle) evaluate(username, password string) Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()

	// 1. Active lockout: no attempt consumed, credentials not checked
	if !t.lockoutUntil.IsZero() && now.Before(t.lockoutUntil) {
		return lockedVerdict(t.lockoutUntil.Sub(now))
	}

	// 2. Attempt spacing
	if spacing := t.config.MinimumAttemptSpacing; spacing > 0 && !t.lastAttemptAt.IsZero() {
		elapsed := now.Sub(t.lastAttemptAt)
		if elapsed < 0 {
			// Clock stepped backwards; treat as no time elapsed
			elapsed = 0
		}
		if elapsed < spacing {
			return rateLimitedVerdict(spacing - elapsed)
		}
	}

	// 3. Credentials
	t.lastAttemptAt = now

	if t.creds != nil && t.creds.Match(username, password) {
		if t.lockoutStrikes > 0 || t.consecutiveFailures > 0 {
			t.logger.Info("admin login succeeded, throttle state cleared",
				slog.Int("previous_failures", t.consecutiveFailures),
				slog.Int("previous_strikes", t.lockoutStrikes))
		}
		t.consecutiveFailures = 0
		t.lockoutStrikes = 0
		t.lockoutUntil = time.Time{}
		return successVerdict()
	}

	t.consecutiveFailures++
	if t.consecutiveFailures < t.config.MaxFailuresBeforeLockout {
		return invalidVerdict(t.config.MaxFailuresBeforeLockout - t.consecutiveFailures)
	}

	t.lockoutStrikes++
	lockout := Escalate(t.lockoutStrikes, t.config.BaseLockout, t.config.MaxLockout)
	t.lockoutUntil = now.Add(lockout)
	if t.config.ResetFailuresOnLockout {
		t.consecutiveFailures = 0
	}

	t.logger.Warn("admin login locked out",
		slog.Int("strikes", t.lockoutStrikes),
		slog.Duration("lockout_duration", lockout))

	return lockedVerdict(lockout)
}

// LockoutRemaining reports the time left on an active lockout without
// touching throttle state. ok is false when no lockout is active.
func (t *LoginThrottle) LockoutRemaining() (remaining time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lockoutUntil.IsZero() {
		return 0, false
	}
	now := t.clock.Now()
	if !now.Before(t.lockoutUntil) {
		return 0, false
	}
	return t.lockoutUntil.Sub(now), true
}

// LockoutRemainingSeconds is LockoutRemaining rounded up to whole seconds
func (t *LoginThrottle) LockoutRemainingSeconds() (int, bool) {
	remaining, ok := t.LockoutRemaining()
	if !ok {
		return 0, false
	}
	return ceilSeconds(remaining), true
}

// Snapshot returns a consistent copy of the throttle state
func (t *LoginThrottle) Snapshot() ThrottleSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return ThrottleSnapshot{
		ConsecutiveFailures: t.consecutiveFailures,
		LockoutStrikes:      t.lockoutStrikes,
		LockoutUntil:        t.lockoutUntil,
		LastAttemptAt:       t.lastAttemptAt,
	}
}

// Config returns the normalised policy in effect
func (t *LoginThrottle) Config() ThrottleConfig {
	return t.config
}

package access_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/carecheck/internal/access"
	"github.com/BradenHooton/carecheck/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdmin    = "frontdesk"
	testPassword = "Triage-Desk-2291"
)

var epoch = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestThrottle(t *testing.T, config access.ThrottleConfig) (*access.LoginThrottle, *clock.Manual) {
	t.Helper()
	creds, err := access.NewStaticCredentials(testAdmin, testPassword, "")
	require.NoError(t, err)

	clk := clock.NewManual(epoch)
	th := access.NewLoginThrottle(config, creds,
		access.WithThrottleClock(clk),
		access.WithThrottleLogger(discardLogger()))
	return th, clk
}

func TestAuthenticate_InvalidCountdownThenLocked(t *testing.T) {
	th, clk := newTestThrottle(t, access.DefaultThrottleConfig())

	for _, want := range []int{4, 3, 2, 1} {
		v := th.Authenticate(testAdmin, "wrong")
		require.Equal(t, access.VerdictInvalid, v.Kind())
		assert.Equal(t, want, v.AttemptsRemaining())
		clk.Advance(2 * time.Second)
	}

	v := th.Authenticate(testAdmin, "wrong")
	require.Equal(t, access.VerdictLocked, v.Kind())
	assert.Positive(t, v.RetryAfter())
	assert.Equal(t, 0, th.Snapshot().ConsecutiveFailures)
	assert.Equal(t, 1, th.Snapshot().LockoutStrikes)
}

func TestAuthenticate_LockedRejectsCorrectCredentialsWithShrinkingRemaining(t *testing.T) {
	th, clk := newTestThrottle(t, access.ThrottleConfig{
		MaxFailuresBeforeLockout: 2,
		BaseLockout:              time.Minute,
		MaxLockout:               time.Hour,
		ResetFailuresOnLockout:   true,
	})

	th.Authenticate(testAdmin, "wrong")
	v := th.Authenticate(testAdmin, "wrong")
	require.Equal(t, access.VerdictLocked, v.Kind())

	previous := v.RetryAfter()
	before := th.Snapshot()
	for i := 0; i < 10; i++ {
		clk.Advance(3 * time.Second)
		v = th.Authenticate(testAdmin, testPassword)
		require.Equal(t, access.VerdictLocked, v.Kind(), "attempt %d", i)
		assert.LessOrEqual(t, v.RetryAfter(), previous)
		previous = v.RetryAfter()
	}

	// Locked verdicts consume nothing
	after := th.Snapshot()
	assert.Equal(t, before.ConsecutiveFailures, after.ConsecutiveFailures)
	assert.Equal(t, before.LockoutStrikes, after.LockoutStrikes)
	assert.Equal(t, before.LastAttemptAt, after.LastAttemptAt)
}

func TestAuthenticate_SuccessAfterFailureResets(t *testing.T) {
	th, clk := newTestThrottle(t, access.DefaultThrottleConfig())

	v := th.Authenticate(testAdmin, "wrong")
	require.Equal(t, access.VerdictInvalid, v.Kind())
	assert.Equal(t, 1, th.Snapshot().ConsecutiveFailures)

	clk.Advance(2 * time.Second)
	v = th.Authenticate(testAdmin, testPassword)
	assert.True(t, v.Succeeded())
	assert.Equal(t, 0, th.Snapshot().ConsecutiveFailures)
}

func TestAuthenticate_RateLimitedWithoutConsumingAttempt(t *testing.T) {
	th, clk := newTestThrottle(t, access.DefaultThrottleConfig())

	th.Authenticate(testAdmin, "wrong")
	v := th.Authenticate(testAdmin, "wrong")
	require.Equal(t, access.VerdictRateLimited, v.Kind())
	assert.Equal(t, time.Second, v.RetryAfter())
	assert.Equal(t, 1, th.Snapshot().ConsecutiveFailures)

	clk.Advance(400 * time.Millisecond)
	v = th.Authenticate(testAdmin, testPassword)
	require.Equal(t, access.VerdictRateLimited, v.Kind())
	assert.Equal(t, 600*time.Millisecond, v.RetryAfter())
	assert.Equal(t, 1, v.RetryAfterSeconds())

	// Spacing is measured from the last evaluated attempt, not the rejected ones
	clk.Advance(600 * time.Millisecond)
	v = th.Authenticate(testAdmin, testPassword)
	assert.True(t, v.Succeeded())
}

func TestAuthenticate_EscalationNonDecreasingAndCapped(t *testing.T) {
	th, clk := newTestThrottle(t, access.ThrottleConfig{
		MaxFailuresBeforeLockout: 3,
		MinimumAttemptSpacing:    0,
		BaseLockout:              30 * time.Second,
		MaxLockout:               120 * time.Second,
		ResetFailuresOnLockout:   true,
	})

	var durations []time.Duration
	for cycle := 0; cycle < 6; cycle++ {
		var v access.Verdict
		for i := 0; i < 3; i++ {
			v = th.Authenticate(testAdmin, "wrong")
		}
		require.Equal(t, access.VerdictLocked, v.Kind())
		durations = append(durations, v.RetryAfter())
		clk.Advance(v.RetryAfter())
	}

	assert.Equal(t, []time.Duration{
		30 * time.Second, 60 * time.Second, 120 * time.Second,
		120 * time.Second, 120 * time.Second, 120 * time.Second,
	}, durations)
}

func TestAuthenticate_EndToEndScenario(t *testing.T) {
	th, clk := newTestThrottle(t, access.ThrottleConfig{
		MaxFailuresBeforeLockout: 3,
		MinimumAttemptSpacing:    0,
		BaseLockout:              30 * time.Second,
		MaxLockout:               120 * time.Second,
		ResetFailuresOnLockout:   true,
	})
	guard := access.NewSessionGuard(access.GuardConfig{Timeout: time.Minute},
		access.WithGuardClock(clk),
		access.WithGuardLogger(discardLogger()))

	v := th.Authenticate(testAdmin, "wrong")
	assert.Equal(t, access.VerdictInvalid, v.Kind())
	assert.Equal(t, 2, v.AttemptsRemaining())

	v = th.Authenticate(testAdmin, "wrong")
	assert.Equal(t, access.VerdictInvalid, v.Kind())
	assert.Equal(t, 1, v.AttemptsRemaining())

	v = th.Authenticate(testAdmin, "wrong")
	assert.Equal(t, access.VerdictLocked, v.Kind())
	assert.Equal(t, 30, v.RetryAfterSeconds())

	v = th.Authenticate(testAdmin, testPassword)
	assert.Equal(t, access.VerdictLocked, v.Kind())
	assert.Equal(t, 30, v.RetryAfterSeconds())
	assert.ErrorIs(t, guard.Unlock(v), access.ErrUnlockWithoutSuccess)
	assert.False(t, guard.IsUnlocked())

	clk.Advance(30 * time.Second)
	v = th.Authenticate(testAdmin, testPassword)
	require.Equal(t, access.VerdictSuccess, v.Kind())
	require.NoError(t, guard.Unlock(v))
	assert.True(t, guard.IsUnlocked())
}

func TestAuthenticate_KeepFailuresPastThreshold(t *testing.T) {
	th, clk := newTestThrottle(t, access.ThrottleConfig{
		MaxFailuresBeforeLockout: 3,
		BaseLockout:              30 * time.Second,
		MaxLockout:               10 * time.Minute,
		ResetFailuresOnLockout:   false,
	})

	var v access.Verdict
	for i := 0; i < 3; i++ {
		v = th.Authenticate(testAdmin, "wrong")
	}
	require.Equal(t, access.VerdictLocked, v.Kind())
	assert.Equal(t, 3, th.Snapshot().ConsecutiveFailures)

	clk.Advance(30 * time.Second)
	v = th.Authenticate(testAdmin, "wrong")
	require.Equal(t, access.VerdictLocked, v.Kind())
	assert.Equal(t, 60*time.Second, v.RetryAfter())
}

func TestAuthenticate_CaseSensitive(t *testing.T) {
	th, _ := newTestThrottle(t, access.ThrottleConfig{MaxFailuresBeforeLockout: 10})

	assert.Equal(t, access.VerdictInvalid, th.Authenticate("FrontDesk", testPassword).Kind())
	assert.Equal(t, access.VerdictInvalid, th.Authenticate(testAdmin, "triage-desk-2291").Kind())
	assert.Equal(t, access.VerdictSuccess, th.Authenticate(testAdmin, testPassword).Kind())
}

func TestLockoutRemaining_IsSideEffectFree(t *testing.T) {
	th, clk := newTestThrottle(t, access.ThrottleConfig{
		MaxFailuresBeforeLockout: 1,
		BaseLockout:              45 * time.Second,
		MaxLockout:               time.Hour,
	})

	_, ok := th.LockoutRemaining()
	assert.False(t, ok)

	th.Authenticate(testAdmin, "wrong")
	before := th.Snapshot()

	clk.Advance(15 * time.Second)
	remaining, ok := th.LockoutRemaining()
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, remaining)

	secs, ok := th.LockoutRemainingSeconds()
	require.True(t, ok)
	assert.Equal(t, 30, secs)
	assert.Equal(t, before, th.Snapshot())

	clk.Advance(30 * time.Second)
	_, ok = th.LockoutRemaining()
	assert.False(t, ok)
}

func TestAuthenticate_ObserverSeesEveryVerdict(t *testing.T) {
	creds, err := access.NewStaticCredentials(testAdmin, testPassword, "")
	require.NoError(t, err)

	var seen []access.VerdictKind
	th := access.NewLoginThrottle(access.ThrottleConfig{MaxFailuresBeforeLockout: 3}, creds,
		access.WithThrottleClock(clock.NewManual(epoch)),
		access.WithThrottleLogger(discardLogger()),
		access.WithAttemptObserver(func(username string, v access.Verdict) {
			assert.Equal(t, testAdmin, username)
			seen = append(seen, v.Kind())
		}))

	th.Authenticate(testAdmin, "wrong")
	th.Authenticate(testAdmin, testPassword)

	assert.Equal(t, []access.VerdictKind{access.VerdictInvalid, access.VerdictSuccess}, seen)
}

func TestThrottleConfig_Normalized(t *testing.T) {
	th, _ := newTestThrottle(t, access.ThrottleConfig{
		MaxFailuresBeforeLockout: 0,
		MinimumAttemptSpacing:    -time.Second,
		BaseLockout:              time.Minute,
		MaxLockout:               time.Second,
	})

	cfg := th.Config()
	assert.Equal(t, 1, cfg.MaxFailuresBeforeLockout)
	assert.Equal(t, time.Duration(0), cfg.MinimumAttemptSpacing)
	assert.Equal(t, time.Minute, cfg.MaxLockout)
}

func TestVerdict_ZeroValueIsNotSuccess(t *testing.T) {
	var v access.Verdict
	assert.False(t, v.Succeeded())
	assert.Equal(t, "unknown", v.Kind().String())
	assert.Equal(t, 0, v.RetryAfterSeconds())
}

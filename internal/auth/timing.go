package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for login response timing equalisation
type TimingConfig struct {
	BaseDelayMs    int  // Minimum response time for a rejected attempt
	RandomDelayMs  int  // Random jitter added on top of the base
	DelayOnSuccess bool // Also pad successful logins
}

// TimingDelay pads rejected admin logins to a common response time so a
// wrong username and a wrong password (plaintext or bcrypt) are indistinguishable
type TimingDelay struct {
	config TimingConfig
	sleep  func(ctx context.Context, d time.Duration)
	since  func(t time.Time) time.Duration
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  sleepContext,
		since:  time.Since,
	}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

// Target returns the padded response time for one attempt
func (td *TimingDelay) Target() time.Duration {
	target := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		if jitter, err := cryptoRandIntn(td.config.RandomDelayMs); err == nil {
			target += time.Duration(jitter) * time.Millisecond
		}
	}
	return target
}

// WaitFrom blocks until at least Target has elapsed since start, or ctx is done
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time, success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}

	if remaining := td.Target() - td.since(start); remaining > 0 {
		td.sleep(ctx, remaining)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

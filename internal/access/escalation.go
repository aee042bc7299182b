package access

import "time"

// Escalate returns the lockout duration for the given strike count:
// base * 2^(strikes-1), capped at max. Zero strikes means no lockout.
func Escalate(strikes int, base, max time.Duration) time.Duration {
	if strikes <= 0 || base <= 0 {
		return 0
	}
	if max < base {
		max = base
	}

	lockout := base
	for i := 1; i < strikes; i++ {
		if lockout >= max/2 {
			return max
		}
		lockout *= 2
	}
	if lockout > max {
		return max
	}
	return lockout
}

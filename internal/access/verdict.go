package access

import (
	"sync/atomic"
	"time"
)

// VerdictKind identifies the outcome of an authentication attempt
type VerdictKind int

const (
	// verdictUnknown is the zero value and is never treated as a success
	verdictUnknown VerdictKind = iota
	VerdictSuccess
	VerdictInvalid
	VerdictRateLimited
	VerdictLocked
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictSuccess:
		return "success"
	case VerdictInvalid:
		return "invalid"
	case VerdictRateLimited:
		return "rate_limited"
	case VerdictLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Verdict is the tagged result of LoginThrottle.Authenticate. Callers must branch
// on Kind and surface AttemptsRemaining or RetryAfter to the user.
//
// A Success verdict carries a single-use grant that SessionGuard.Unlock redeems.
// Verdicts cannot be forged outside this package.
type Verdict struct {
	kind              VerdictKind
	attemptsRemaining int
	retryAfter        time.Duration
	grant             *unlockGrant
}

type unlockGrant struct {
	redeemed atomic.Bool
}

func (g *unlockGrant) redeem() bool {
	if g == nil {
		return false
	}
	return g.redeemed.CompareAndSwap(false, true)
}

func successVerdict() Verdict {
	return Verdict{kind: VerdictSuccess, grant: &unlockGrant{}}
}

func invalidVerdict(remaining int) Verdict {
	return Verdict{kind: VerdictInvalid, attemptsRemaining: remaining}
}

func rateLimitedVerdict(retryAfter time.Duration) Verdict {
	return Verdict{kind: VerdictRateLimited, retryAfter: retryAfter}
}

func lockedVerdict(remaining time.Duration) Verdict {
	return Verdict{kind: VerdictLocked, retryAfter: remaining}
}

func (v Verdict) Kind() VerdictKind { return v.kind }

// Succeeded reports whether the credentials were accepted
func (v Verdict) Succeeded() bool { return v.kind == VerdictSuccess }

// AttemptsRemaining is the number of wrong attempts left before lockout. Only set for Invalid.
func (v Verdict) AttemptsRemaining() int { return v.attemptsRemaining }

// RetryAfter is the wait before another attempt is evaluated. Set for RateLimited and Locked.
func (v Verdict) RetryAfter() time.Duration { return v.retryAfter }

// RetryAfterSeconds rounds RetryAfter up to whole seconds so a positive wait never displays as 0
func (v Verdict) RetryAfterSeconds() int {
	return ceilSeconds(v.retryAfter)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

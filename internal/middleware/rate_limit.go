package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/carecheck/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// DefaultLoginRateLimit returns the default per-IP ceiling for the login route.
// The login throttle enforces the real policy; this only sheds floods.
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultLoginRateLimit().RequestsPerMinute
	}

	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteError(w, http.StatusTooManyRequests, "too_many_requests", "Request limit exceeded")
		}),
	)
}

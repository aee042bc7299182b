package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig holds configuration for client IP extraction
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ExtractClientIP returns the client address used in audit lines and rate
// limit keys. Forwarding headers are honoured only when the direct peer is a
// trusted proxy. X-Forwarded-For is read right to left and the first address
// outside the trusted ranges wins, since entries left of it are client-supplied.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remote := remoteAddr(r)
	if config == nil || !trusted(remote, config.TrustedProxies) {
		return remote
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		if addr, ok := forwardedClient(strings.Split(strings.Join(xff, ","), ","), config.TrustedProxies); ok {
			return addr
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return remote
}

// forwardedClient walks the hops nearest-first. When every hop is a trusted
// proxy the outermost one is the client.
func forwardedClient(hops []string, proxies []string) (string, bool) {
	outermost := ""
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			continue
		}
		if !trusted(addr.String(), proxies) {
			return addr.String(), true
		}
		outermost = addr.String()
	}
	return outermost, outermost != ""
}

func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func trusted(ip string, proxies []string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, cidr := range proxies {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue
		}
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

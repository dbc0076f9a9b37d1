package utils

import (
	"net"
	"net/http"
	"strings"
)

// hostNoPort returns the host part (no port) from strings like
// "ip:port", "[v6]:port", or "ip".
func hostNoPort(s string) string {
	if s == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}

// firstForwardedFor returns the first IP from X-Forwarded-For (left-most), trimmed.
func firstForwardedFor(xff string) string {
	xff = strings.TrimSpace(xff)
	if xff == "" {
		return ""
	}
	if i := strings.IndexByte(xff, ','); i >= 0 {
		xff = xff[:i]
	}
	return strings.TrimSpace(xff)
}

// ClientIP resolves the real client IP, keying the auth rate limiter.
// If trustProxy is true, prefers X-Forwarded-For (first), then
// X-Real-IP. Otherwise falls back to RemoteAddr only.
//
// NOTE: only set trustProxy when satcheld is reachable exclusively
// through a trusted reverse proxy; the headers are attacker-supplied
// otherwise.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if v := firstForwardedFor(r.Header.Get("X-Forwarded-For")); v != "" {
			if ip := hostNoPort(v); ip != "" {
				return ip
			}
		}
		if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
			if ip := hostNoPort(v); ip != "" {
				return ip
			}
		}
	}
	return hostNoPort(r.RemoteAddr)
}

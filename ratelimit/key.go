package ratelimit

import (
	"net"
	"strings"

	"github.com/jonwraymond/guardchain/guard"
)

// KeyFunc derives the rate limit key for a request.
type KeyFunc func(gc *guard.Context) string

// ByRemoteAddr keys requests by client address. A non-empty header takes
// precedence; then, when trustXFF is set, the first X-Forwarded-For entry;
// then the host part of RemoteAddr.
func ByRemoteAddr(header string, trustXFF bool) KeyFunc {
	return func(gc *guard.Context) string {
		req := gc.Request
		if header != "" {
			if v := strings.TrimSpace(req.Header(header)); v != "" {
				return v
			}
		}
		if trustXFF {
			if xff := req.Header("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}
		addr := strings.TrimSpace(req.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		if addr != "" {
			return addr
		}
		return "unknown"
	}
}

// ByPrincipal keys requests by authenticated principal id, falling back to
// the client address for anonymous requests.
func ByPrincipal() KeyFunc {
	fallback := ByRemoteAddr("", false)
	return func(gc *guard.Context) string {
		if gc.Principal != nil && gc.Principal.ID != "" {
			return "principal:" + gc.Principal.ID
		}
		return "addr:" + fallback(gc)
	}
}

// ByHeader keys requests by a header value, or "unknown" when absent.
func ByHeader(name string) KeyFunc {
	return func(gc *guard.Context) string {
		if v := strings.TrimSpace(gc.Request.Header(name)); v != "" {
			return v
		}
		return "unknown"
	}
}

package clientip

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

const HeaderForwardedFor = "X-Forwarded-For"

// FromRequest returns the client IP of r, or "" when none can be parsed.
// Trusted headers are consulted in order before RemoteAddr.
func FromRequest(r *http.Request, trusted ...string) string {
	for _, name := range trusted {
		value := r.Header.Get(name)
		if value == "" {
			continue
		}
		if http.CanonicalHeaderKey(name) == HeaderForwardedFor {
			if ip := lastValid(r.Header.Values(name)); ip != "" {
				return ip
			}
			continue
		}
		if ip := parse(value); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parse(r.RemoteAddr)
	}
	return parse(host)
}

// lastValid scans comma separated lists from the right.
func lastValid(values []string) string {
	for i := len(values) - 1; i >= 0; i-- {
		parts := strings.Split(values[i], ",")
		for j := len(parts) - 1; j >= 0; j-- {
			if ip := parse(parts[j]); ip != "" {
				return ip
			}
		}
	}
	return ""
}

func parse(s string) string {
	addr, err := netip.ParseAddr(strings.Trim(strings.TrimSpace(s), "[]"))
	if err != nil {
		return ""
	}
	// zones are local to the proxy and would split one client into many keys
	return addr.WithZone("").Unmap().String()
}

type ctxKey struct{}

func WithContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ip)
}

func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ctxKey{}).(string)
	return ip
}

// Middleware stores the resolved client IP in the request context.
func Middleware(trusted ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithContext(r.Context(), FromRequest(r, trusted...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyFunc returns the stored client IP, for use as a rate limit key.
func KeyFunc(r *http.Request) string {
	if ip := FromContext(r.Context()); ip != "" {
		return "ip:" + ip
	}
	return ""
}

// LoggerExtractor adds client_ip to records logged with a request context.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if ip := FromContext(ctx); ip != "" {
			return slog.String("client_ip", ip), true
		}
		return slog.Attr{}, false
	}
}

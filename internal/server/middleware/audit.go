package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ZewK3/Home-sub002/internal/audit"
	sessiondomain "github.com/ZewK3/Home-sub002/internal/session/domain"
	"github.com/ZewK3/Home-sub002/internal/telemetry"
	telemetrydomain "github.com/ZewK3/Home-sub002/internal/telemetry/domain"
)

// requestMetadata is the JSON shape stored in audit metadata and http_request telemetry events.
type requestMetadata struct {
	Action     string `json:"action"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// ClientIPContext records the client IP of each request in its context for the audit logger.
func ClientIPContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey, ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP or the remote address, or "unknown".
func ClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}

// record writes the audit entry and emits the http_request event for a served protected call.
// Both are best-effort and never change the response.
func (g *Guard) record(ctx context.Context, action string, p sessiondomain.Principal, status int, elapsed time.Duration) {
	g.metrics.action(action, status)
	meta, _ := json.Marshal(requestMetadata{
		Action:     action,
		StatusCode: status,
		DurationMs: elapsed.Milliseconds(),
		ClientIP:   GetClientIP(ctx),
	})
	if g.audit != nil {
		ar := audit.ParseAction(action)
		g.audit.LogEvent(ctx, p.ID, ar.Action, ar.Resource, string(meta))
	}
	telemetry.EmitAsync(ctx, g.events, &telemetrydomain.Event{
		PrincipalID:   p.ID,
		PrincipalKind: string(p.Kind),
		EventType:     "http_request",
		Source:        "http_middleware",
		Metadata:      meta,
	})
}

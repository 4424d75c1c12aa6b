package middleware

import (
	"context"

	sessiondomain "github.com/ZewK3/Home-sub002/internal/session/domain"
)

type contextKey struct{ name string }

var (
	principalKey = contextKey{"principal"}
	clientIPKey  = contextKey{"client_ip"}
)

// WithPrincipal returns a context carrying the authenticated principal.
// Handlers read it via GetPrincipal.
func WithPrincipal(ctx context.Context, p sessiondomain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the principal from context and true if set; otherwise the zero value, false.
func GetPrincipal(ctx context.Context) (sessiondomain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(sessiondomain.Principal)
	return p, ok
}

// GetClientIP returns the client IP recorded by ClientIPContext, or "".
// It satisfies audit.IPExtractor.
func GetClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

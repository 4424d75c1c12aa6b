package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ZewK3/Home-sub002/internal/audit"
	"github.com/ZewK3/Home-sub002/internal/platform/httpx"
	"github.com/ZewK3/Home-sub002/internal/policy/engine"
	sessiondomain "github.com/ZewK3/Home-sub002/internal/session/domain"
	sessionservice "github.com/ZewK3/Home-sub002/internal/session/service"
	"github.com/ZewK3/Home-sub002/internal/telemetry"
)

const bearerPrefix = "bearer "

// SessionValidator resolves a session token to its principal.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (sessiondomain.Principal, error)
}

// Guard authenticates and authorizes protected actions. Each protected request is validated
// exactly once; the principal is then available to the handler via GetPrincipal.
type Guard struct {
	sessions SessionValidator
	authz    engine.Authorizer
	audit    audit.AuditLogger
	events   telemetry.EventEmitter
	metrics  *Metrics
	log      zerolog.Logger
}

// NewGuard returns a Guard. auditLogger, events and metrics may be nil.
func NewGuard(sessions SessionValidator, authz engine.Authorizer, auditLogger audit.AuditLogger, events telemetry.EventEmitter, metrics *Metrics, log zerolog.Logger) *Guard {
	return &Guard{sessions: sessions, authz: authz, audit: auditLogger, events: events, metrics: metrics, log: log}
}

// Protect wraps next so that it only runs for a valid session whose principal the policy allows
// to perform action. Missing, unknown and expired tokens get 401; a policy denial gets 403.
func (g *Guard) Protect(action string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, err := g.sessions.Validate(ctx, ExtractToken(r))
		if err != nil {
			g.metrics.authFailure(action, authFailureReason(err))
			if errors.Is(err, sessionservice.ErrStorage) {
				httpx.Internal(w, r, err)
				return
			}
			httpx.Error(w, http.StatusUnauthorized, err.Error())
			return
		}
		allowed, err := g.authz.Allow(ctx, engine.Input{Action: action, Principal: p})
		if err != nil {
			g.log.Error().Err(err).Str("action", action).Msg("authz: policy evaluation failed")
		}
		if err != nil || !allowed {
			g.metrics.authFailure(action, "forbidden")
			httpx.Error(w, http.StatusForbidden, "forbidden")
			return
		}

		ctx = WithPrincipal(ctx, p)
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		g.record(ctx, action, p, statusOf(ww), time.Since(start))
	})
}

// ExtractToken returns the session token of r. The ?token= query parameter wins over the
// Authorization header, matching the storefront's legacy clients.
func ExtractToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	return ExtractBearer(r)
}

// ExtractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func ExtractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, sessionservice.ErrMissingToken):
		return "missing"
	case errors.Is(err, sessionservice.ErrExpiredToken):
		return "expired"
	case errors.Is(err, sessionservice.ErrInvalidToken):
		return "invalid"
	default:
		return "storage"
	}
}

// Package server assembles the HTTP API and the gRPC health endpoint.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ZewK3/Home-sub002/internal/api"
	healthhandler "github.com/ZewK3/Home-sub002/internal/health/handler"
	identityhandler "github.com/ZewK3/Home-sub002/internal/identity/handler"
	orderhandler "github.com/ZewK3/Home-sub002/internal/order/handler"
	paymenthandler "github.com/ZewK3/Home-sub002/internal/payment/handler"
	"github.com/ZewK3/Home-sub002/internal/platform/httpx"
	"github.com/ZewK3/Home-sub002/internal/server/middleware"
	userhandler "github.com/ZewK3/Home-sub002/internal/user/handler"
)

// Deps holds the handlers and cross-cutting components the router is built from.
type Deps struct {
	Guard    *middleware.Guard
	Identity *identityhandler.Handler
	Orders   *orderhandler.Handler
	Payments *paymenthandler.Handler
	Users    *userhandler.Handler
	// Health backs /readyz. If nil, readiness always passes.
	Health *healthhandler.Checker
	// Metrics records request metrics. If nil, nothing is recorded.
	Metrics *middleware.Metrics
	// Gatherer serves /metrics. If nil, the default Prometheus registry is used.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger

	AllowedOrigins []string
	// RateLimitPerMinute caps API requests per client IP; 0 disables the limiter.
	RateLimitPerMinute int
	// RequestTimeout bounds API handlers; 0 means 30s.
	RequestTimeout time.Duration
}

// NewRouter returns the HTTP handler serving the legacy ?action= API on / and /api, the REST
// API under /v1, and the health and metrics endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(d.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(chimw.RealIP)
	r.Use(middleware.ClientIPContext)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("action", r.URL.Query().Get("action")).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)
	r.Use(d.Metrics.Handler)

	r.Get("/healthz", healthhandler.Live)
	if d.Health != nil {
		r.Get("/readyz", d.Health.Ready)
	} else {
		r.Get("/readyz", healthhandler.NewChecker(nil, nil).Ready)
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	actions := buildActions(d)
	r.Group(func(r chi.Router) {
		allowed := d.AllowedOrigins
		if len(allowed) == 0 {
			allowed = []string{"*"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowed,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         int((10 * time.Minute).Seconds()),
		}))
		if d.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(d.RateLimitPerMinute, time.Minute))
		}
		timeout := d.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		r.Use(chimw.Timeout(timeout))

		legacy := dispatch(actions)
		r.Get("/", legacy)
		r.Post("/", legacy)
		r.Get("/api", legacy)
		r.Post("/api", legacy)

		r.Route("/v1", func(r chi.Router) {
			r.Post("/customers/register", actions[api.ActionRegisterUser].ServeHTTP)
			r.Post("/customers/login", actions[api.ActionLoginUser].ServeHTTP)
			r.Post("/employees/register", actions[api.ActionRegister].ServeHTTP)
			r.Post("/employees/login", actions[api.ActionLogin].ServeHTTP)
			r.Get("/session", actions[api.ActionMe].ServeHTTP)
			r.Post("/session/logout", actions[api.ActionLogout].ServeHTTP)

			r.Get("/payments/{transactionID}", actions[api.ActionCheckTransaction].ServeHTTP)
			r.Post("/payments", actions[api.ActionSavePayment].ServeHTTP)

			r.Post("/orders", actions[api.ActionSaveOrder].ServeHTTP)
			r.Get("/orders", actions[api.ActionGetOrders].ServeHTTP)
			r.Post("/orders/reserve", actions[api.ActionReserveOrder].ServeHTTP)
			r.Get("/orders/{orderID}", actions[api.ActionGetOrderByID].ServeHTTP)
			r.Post("/orders/{orderID}/status", actions[api.ActionUpdateOrderStatus].ServeHTTP)
			r.Post("/orders/{orderID}/cancel", actions[api.ActionCancelOrder].ServeHTTP)

			r.Get("/users/me", actions[api.ActionGetUser].ServeHTTP)
			r.Post("/users/{userID}/exp", actions[api.ActionAdjustUserExp].ServeHTTP)
		})
	})

	return otelhttp.NewHandler(r, "storefront-api",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/readyz" && r.URL.Path != "/metrics"
		}),
	)
}

// buildActions maps every action name to its handler. Protected actions are wrapped once here so
// the legacy dispatcher and the REST routes share one authentication path.
func buildActions(d Deps) map[string]http.Handler {
	protect := func(action string, h http.HandlerFunc) http.Handler {
		return d.Guard.Protect(action, h)
	}
	return map[string]http.Handler{
		api.ActionRegisterUser:     http.HandlerFunc(d.Identity.RegisterCustomer),
		api.ActionLoginUser:        http.HandlerFunc(d.Identity.LoginCustomer),
		api.ActionRegister:         http.HandlerFunc(d.Identity.RegisterEmployee),
		api.ActionLogin:            http.HandlerFunc(d.Identity.LoginEmployee),
		api.ActionCheckTransaction: http.HandlerFunc(d.Payments.Check),
		api.ActionSavePayment:      http.HandlerFunc(d.Payments.Ingest),

		api.ActionMe:                protect(api.ActionMe, d.Identity.Me),
		api.ActionLogout:            protect(api.ActionLogout, d.Identity.Logout),
		api.ActionSaveOrder:         protect(api.ActionSaveOrder, d.Orders.Save),
		api.ActionReserveOrder:      protect(api.ActionReserveOrder, d.Orders.Reserve),
		api.ActionUpdateOrderStatus: protect(api.ActionUpdateOrderStatus, d.Orders.UpdateStatus),
		api.ActionGetOrders:         protect(api.ActionGetOrders, d.Orders.List),
		api.ActionGetOrderByID:      protect(api.ActionGetOrderByID, d.Orders.Get),
		api.ActionCancelOrder:       protect(api.ActionCancelOrder, d.Orders.Cancel),
		api.ActionGetUser:           protect(api.ActionGetUser, d.Users.Get),
		api.ActionAdjustUserExp:     protect(api.ActionAdjustUserExp, d.Users.AdjustExp),
	}
}

func dispatch(actions map[string]http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("action")
		if name == "" {
			httpx.Error(w, http.StatusBadRequest, "action is required")
			return
		}
		h, ok := actions[name]
		if !ok {
			httpx.Error(w, http.StatusBadRequest, "unknown action: "+name)
			return
		}
		h.ServeHTTP(w, r)
	}
}

// Server runs the storefront HTTP API and, when GRPC_ADDR is set, the gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/ZewK3/Home-sub002/internal/audit"
	auditrepo "github.com/ZewK3/Home-sub002/internal/audit/repository"
	"github.com/ZewK3/Home-sub002/internal/config"
	"github.com/ZewK3/Home-sub002/internal/db"
	employeerepo "github.com/ZewK3/Home-sub002/internal/employee/repository"
	healthhandler "github.com/ZewK3/Home-sub002/internal/health/handler"
	identityhandler "github.com/ZewK3/Home-sub002/internal/identity/handler"
	identityservice "github.com/ZewK3/Home-sub002/internal/identity/service"
	orderhandler "github.com/ZewK3/Home-sub002/internal/order/handler"
	orderrepo "github.com/ZewK3/Home-sub002/internal/order/repository"
	orderservice "github.com/ZewK3/Home-sub002/internal/order/service"
	paymenthandler "github.com/ZewK3/Home-sub002/internal/payment/handler"
	paymentrepo "github.com/ZewK3/Home-sub002/internal/payment/repository"
	paymentservice "github.com/ZewK3/Home-sub002/internal/payment/service"
	"github.com/ZewK3/Home-sub002/internal/platform/logging"
	"github.com/ZewK3/Home-sub002/internal/policy/engine"
	"github.com/ZewK3/Home-sub002/internal/security"
	"github.com/ZewK3/Home-sub002/internal/server"
	"github.com/ZewK3/Home-sub002/internal/server/middleware"
	sessionrepo "github.com/ZewK3/Home-sub002/internal/session/repository"
	sessionservice "github.com/ZewK3/Home-sub002/internal/session/service"
	"github.com/ZewK3/Home-sub002/internal/telemetry"
	telemetryotel "github.com/ZewK3/Home-sub002/internal/telemetry/otel"
	"github.com/ZewK3/Home-sub002/internal/telemetry/producer"
	userhandler "github.com/ZewK3/Home-sub002/internal/user/handler"
	userrepo "github.com/ZewK3/Home-sub002/internal/user/repository"
	userservice "github.com/ZewK3/Home-sub002/internal/user/service"
)

const serviceName = "storefront-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.Setup(serviceName, cfg.LogLevel, cfg.Env)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; run migrations with cmd/migrate first")
	}

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, serviceName, cfg.OTelInsecure)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	providers.SetGlobal()

	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kp := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic); kp != nil {
		var bus producer.Producer = kp
		defer func() {
			if err := bus.Close(); err != nil {
				logger.Warn().Err(err).Msg("close kafka producer")
			}
		}()
		emitters = append(emitters, bus)
		logger.Info().Strs("brokers", cfg.TelemetryKafkaBrokersList()).Str("topic", cfg.TelemetryKafkaTopic).Msg("telemetry to kafka enabled")
	}
	events := telemetry.Multi(emitters...)

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	authz, err := engine.NewOPAAuthorizer(ctx, "")
	if err != nil {
		return err
	}

	sessions := sessionrepo.NewPostgresRepository(database)
	users := userrepo.NewPostgresRepository(database)
	employees := employeerepo.NewPostgresRepository(database)
	payments := paymentrepo.NewPostgresRepository(database)
	orders := orderrepo.NewPostgresRepository(database)

	authority := sessionservice.NewAuthority(sessions, cfg.SessionLifetime(),
		sessionservice.WithLeeway(cfg.SessionLeeway()),
		sessionservice.WithLogger(logger),
	)
	if interval := cfg.ReapInterval(); interval > 0 {
		logger.Info().Dur("interval", interval).Msg("session reaper enabled")
		go authority.RunReaper(ctx, interval)
	}

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database), middleware.GetClientIP, logger)
	authSvc := identityservice.NewAuthService(users, employees, authority,
		security.NewHasher(cfg.BcryptCost),
		security.NewPBKDF2Hasher(cfg.PBKDF2Iterations),
		cfg.EmployeeAutoApprove,
		auditLogger,
		logger,
	)
	ingest := security.NewIngestTokens(cfg.PaymentIngestSecret, cfg.PaymentIngestIssuer)
	if cfg.PaymentIngestSecret == "" {
		logger.Warn().Msg("PAYMENT_INGEST_SECRET is empty; payment ingest is disabled")
	}

	metrics := middleware.NewMetrics(prometheus.DefaultRegisterer)
	handler := server.NewRouter(server.Deps{
		Guard:              middleware.NewGuard(authority, authz, auditLogger, events, metrics, logger),
		Identity:           identityhandler.NewHandler(authSvc, events),
		Orders:             orderhandler.NewHandler(orderservice.NewService(orders, users, payments, logger), events),
		Payments:           paymenthandler.NewHandler(paymentservice.NewService(payments, logger), ingest, events),
		Users:              userhandler.NewHandler(userservice.NewService(users, logger)),
		Health:             healthhandler.NewChecker(database, authz),
		Metrics:            metrics,
		Gatherer:           prometheus.DefaultGatherer,
		Logger:             logger,
		AllowedOrigins:     cfg.AllowedOrigins(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcSrv = server.NewGRPCServer(database, authz)
		go func() {
			logger.Info().Str("addr", cfg.GRPCAddr).Msg("grpc health server listening")
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown http server")
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}

	// In-flight async telemetry emits get a chance to finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown otel")
	}
	logger.Info().Msg("server stopped")
	return runErr
}

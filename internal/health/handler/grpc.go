package handler

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the service name probes may ask for besides the empty (whole server) name.
const ServiceName = "storefront"

// Server implements grpc.health.v1.Health for load balancers and Kubernetes probes. Every Check
// runs the readiness probes; Watch is not supported.
type Server struct {
	healthpb.UnimplementedHealthServer
	checker *Checker
}

// NewServer returns a health server backed by pinger and policy. Either may be nil.
func NewServer(pinger Pinger, policy PolicyChecker) *Server {
	return &Server{checker: NewChecker(pinger, policy)}
}

// Check reports SERVING or NOT_SERVING. Probe failures are not returned as gRPC errors.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if err := s.checker.Check(ctx); err != nil {
		log.Warn().Err(err).Msg("health: not serving")
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

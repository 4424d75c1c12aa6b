package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "github.com/ZewK3/Home-sub002/internal/health/handler"
)

// NewGRPCServer returns a gRPC server exposing only grpc.health.v1, backed by the same probes
// as /readyz. Calls are traced with otelgrpc.
func NewGRPCServer(pinger healthhandler.Pinger, policy healthhandler.PolicyChecker) *grpc.Server {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(pinger, policy))
	return s
}

package handler

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func TestCheck_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		pinger Pinger
		policy PolicyChecker
		want   healthpb.HealthCheckResponse_ServingStatus
	}{
		{"no dependencies", nil, nil, healthpb.HealthCheckResponse_SERVING},
		{"ping ok", &mockPinger{}, nil, healthpb.HealthCheckResponse_SERVING},
		{"ping fails", &mockPinger{pingErr: errors.New("connection refused")}, nil, healthpb.HealthCheckResponse_NOT_SERVING},
		{"policy ok", nil, &mockPolicyChecker{}, healthpb.HealthCheckResponse_SERVING},
		{"policy fails", nil, &mockPolicyChecker{healthErr: errors.New("rego compile failed")}, healthpb.HealthCheckResponse_NOT_SERVING},
		{"both ok", &mockPinger{}, &mockPolicyChecker{}, healthpb.HealthCheckResponse_SERVING},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(tt.pinger, tt.policy)
			resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
			if err != nil {
				t.Fatalf("Check must not return a gRPC error: %v", err)
			}
			if resp.GetStatus() != tt.want {
				t.Errorf("status = %v, want %v", resp.GetStatus(), tt.want)
			}
		})
	}
}

func TestCheck_NamedService(t *testing.T) {
	srv := NewServer(nil, nil)
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("Check(%q) = %v, %v", ServiceName, resp, err)
	}
	_, err = srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "billing"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("unknown service code = %v, want NotFound", status.Code(err))
	}
}

// Package handler reports service readiness over HTTP (/healthz, /readyz) and the standard
// grpc.health.v1 service.
package handler

import (
	"context"
	"fmt"
	"time"
)

// checkTimeout bounds a single readiness probe.
const checkTimeout = 2 * time.Second

// Pinger checks database connectivity. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker verifies that the authorization policy engine evaluates.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs the readiness probes. A nil pinger or policy checker is skipped.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
}

func NewChecker(pinger Pinger, policy PolicyChecker) *Checker {
	return &Checker{pinger: pinger, policy: policy}
}

// Check returns nil when every configured dependency is healthy.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if c.pinger != nil {
		if err := c.pinger.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			return fmt.Errorf("policy engine: %w", err)
		}
	}
	return nil
}

// Package producer ships telemetry events to an external bus for the worker to forward.
package producer

import (
	"context"

	"github.com/ZewK3/Home-sub002/internal/telemetry/domain"
)

// Producer is an event emitter that owns a connection and must be closed on shutdown.
type Producer interface {
	Emit(ctx context.Context, event *domain.Event) error
	Close() error
}

// Package producer publishes console events to a message broker (Kafka).
package producer

import (
	"context"

	"github.com/hugo617/healthcare-admin-sub001/internal/telemetry/domain"
)

// Producer emits events. It satisfies telemetry.EventEmitter so it can join a fan-out.
// Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, event *domain.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

package telemetry

import (
	"context"
	"errors"

	"github.com/hugo617/healthcare-admin-sub001/internal/telemetry/domain"
)

// EventEmitter emits telemetry events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}

// Fanout emits every event to each non-nil emitter and joins their errors.
type Fanout []EventEmitter

// NewFanout drops nil emitters. It returns nil when none remain.
func NewFanout(emitters ...EventEmitter) EventEmitter {
	var out Fanout
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (f Fanout) Emit(ctx context.Context, event *domain.Event) error {
	var errs []error
	for _, e := range f {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

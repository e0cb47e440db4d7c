package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the outbox: append-only on the hot path, drained by the worker.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, eventIDs []uuid.UUID, at time.Time) error
}

// Publisher records events. Audit trouble is logged, never propagated: the
// import pipeline must not fail because the trail hiccuped.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

// Emit appends one event to the outbox. Safe to call on a nil publisher.
func (p *Publisher) Emit(ctx context.Context, aggregateType, aggregateID, action string, details map[string]any) {
	if p == nil {
		return
	}
	event := Event{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Action:        action,
		Timestamp:     time.Now().UTC(),
		Details:       details,
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"action", action, "aggregate_id", aggregateID, "error", err)
	}
}

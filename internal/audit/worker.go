package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const drainBatchSize = 100

// Worker drains the outbox into Kafka. Kafka is the durable audit trail;
// the outbox row is only marked published after the broker acknowledged.
type Worker struct {
	store    Store
	client   *kgo.Client
	topic    string
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(store Store, client *kgo.Client, topic string, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{store: store, client: client, topic: topic, interval: interval, logger: logger}
}

// EnsureTopic creates the audit topic if the cluster does not have it.
func (w *Worker) EnsureTopic(ctx context.Context) error {
	admin := kadm.NewClient(w.client)
	resp, err := admin.CreateTopic(ctx, 1, 1, nil, w.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create audit topic %s: %w", w.topic, resp.Err)
	}
	return nil
}

// Run drains on a fixed interval until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	events, err := w.store.ListUnpublished(ctx, drainBatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal audit event %s: %w", e.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: w.topic,
			Key:   []byte(e.AggregateID),
			Value: value,
		})
	}

	if err := w.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}

	ids := make([]uuid.UUID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return w.store.MarkPublished(ctx, ids, time.Now().UTC())
}

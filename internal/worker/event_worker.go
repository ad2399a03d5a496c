package worker

// event_worker.go
// Drains QueueEvents and forwards each event to the EventPublisher. Publishing
// goes through a circuit breaker and is retried with exponential backoff; a
// job that still fails is returned as an error and lands in the DLQ.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"poscore/internal/infra"

	"github.com/rs/zerolog/log"
)

const maxPublishAttempts = 3

type EventWorker struct {
	publisher EventPublisher
	breaker   *infra.CircuitBreaker
	baseDelay time.Duration
}

func NewEventWorker(publisher EventPublisher, breaker *infra.CircuitBreaker) *EventWorker {
	return &EventWorker{publisher: publisher, breaker: breaker, baseDelay: time.Second}
}

func (w *EventWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return fmt.Errorf("event_worker: invalid payload: %w", err)
	}

	err := withRetry(ctx, maxPublishAttempts, w.baseDelay, func(attempt int) error {
		err := w.breaker.Execute(func() error {
			return w.publisher.Publish(ctx, evt)
		})
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", evt.ID.String()).
				Str("event_type", evt.Type).
				Msg("event_worker: publish attempt failed")
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("event_worker: publish %s: %w", evt.Type, err)
	}
	return nil
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = base, 3 = 2*base.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const QueueEvents = "jobs:events"

// popRetryDelay is how long a worker waits after a failed BRPOP (Redis down)
// before trying again.
var popRetryDelay = time.Second

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts,omitempty"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
	now func() time.Time
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb, now: func() time.Time { return time.Now().UTC() }}
}

// EnqueueEvent wraps payload in an Event envelope and pushes it to QueueEvents.
func (d *Dispatcher) EnqueueEvent(ctx context.Context, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	evt := Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: d.now(),
		Payload:    data,
	}
	return d.enqueue(ctx, QueueEvents, eventType, evt)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// JobHandler processes one job payload. A returned error sends the job to
// the dead letter queue.
type JobHandler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// WorkerHandlers maps queues to their handlers. Wired at the composition root.
type WorkerHandlers struct {
	Events JobHandler
}

func (h *WorkerHandlers) forQueue(queue string) JobHandler {
	switch queue {
	case QueueEvents:
		return h.Events
	}
	return nil
}

// StartWorkerPool launches numWorkers goroutines consuming the queues.
// Each goroutine blocks on BRPOP, so idle workers use no CPU. The returned
// WaitGroup is done once every worker has observed ctx cancellation.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, numWorkers int) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorker(ctx, rdb, handlers, id)
		}(i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
	return &wg
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, id int) {
	queues := []string{QueueEvents}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue // timeout or shutting down
			}
			if err != nil {
				log.Warn().Err(err).Int("worker", id).Msg("queue pop failed; backing off")
				select {
				case <-ctx.Done():
				case <-time.After(popRetryDelay):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, rdb, queue, "unknown", json.RawMessage(raw), "malformed job: "+err.Error(), 0)
		return
	}

	h := handlers.forQueue(queue)
	if h == nil {
		log.Warn().Str("type", job.Type).Str("queue", queue).Msg("no handler for queue")
		return
	}

	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("processing job")
	if err := h.Process(ctx, job.Payload); err != nil {
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error(), maxPublishAttempts)
	}
}

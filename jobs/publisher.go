package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
)

// Enqueuer is the subset of asynq.Client used to hand off tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// OutboxPublisher turns relayed outbox messages into delivery tasks. The event id doubles
// as the task id, so a message relayed twice is enqueued once.
type OutboxPublisher struct {
	enqueuer Enqueuer
	maxRetry int
	metrics  *jobmetrics.Metrics
}

// NewOutboxPublisher builds a publisher on top of an Asynq client.
func NewOutboxPublisher(enqueuer Enqueuer, maxRetry int) *OutboxPublisher {
	if maxRetry <= 0 {
		maxRetry = 10
	}
	return &OutboxPublisher{enqueuer: enqueuer, maxRetry: maxRetry}
}

// WithMetrics counts accepted events on m.
func (p *OutboxPublisher) WithMetrics(m *jobmetrics.Metrics) *OutboxPublisher {
	p.metrics = m
	return p
}

// Publish implements outbox.Publisher.
func (p *OutboxPublisher) Publish(ctx context.Context, msg outbox.Message) error {
	task, err := NewOutboxDeliverTask(msg)
	if err != nil {
		return fmt.Errorf("jobs: outbox task: %w", err)
	}
	_, err = p.enqueuer.EnqueueContext(ctx, task,
		asynq.TaskID(msg.EventID.String()),
		asynq.Queue(QueueOutbox),
		asynq.MaxRetry(p.maxRetry),
	)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		return nil
	case err != nil:
		return fmt.Errorf("jobs: enqueue %s: %w", msg.EventType, err)
	}
	p.metrics.Published(string(msg.EventType))
	return nil
}

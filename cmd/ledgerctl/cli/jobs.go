package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// JobsCLI bundles the queue client and inspector used by the jobs subcommands.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI connects to the queue backend lazily; nothing dials until the first call.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases both connections.
func (c *JobsCLI) Close() error {
	return errors.Join(c.inspector.Close(), c.client.Close())
}

// Trigger enqueues a task that operators may start by hand.
func (c *JobsCLI) Trigger(ctx context.Context, name string, payload jobs.GLIntegrityPayload) (*asynq.TaskInfo, error) {
	switch name {
	case jobs.TaskGLIntegrity:
		return c.client.EnqueueGLIntegrity(ctx, payload)
	default:
		return nil, fmt.Errorf("jobs: %s cannot be triggered manually", name)
	}
}

// InspectQueues reports the counters of the ledger queues.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]jobs.QueueStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return jobs.InspectQueues(c.inspector)
}

// ListArchived returns outbox deliveries that exhausted their retries.
func (c *JobsCLI) ListArchived(size int) ([]*asynq.TaskInfo, error) {
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListArchivedTasks(jobs.QueueOutbox, asynq.PageSize(size), asynq.Page(1))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	return tasks, err
}

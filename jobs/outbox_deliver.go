package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
)

// ReportInvalidator drops cached reports of a tenant.
type ReportInvalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// OutboxDeliveryJob consumes delivered outbox events.
type OutboxDeliveryJob struct {
	Reports ReportInvalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOutboxDeliveryJob initialises the delivery handler.
func NewOutboxDeliveryJob(reports ReportInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *OutboxDeliveryJob {
	return &OutboxDeliveryJob{Reports: reports, Logger: logger, Metrics: metrics}
}

// Handle processes TaskOutboxDeliver tasks.
func (j *OutboxDeliveryJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("outbox delivery: handler not configured")
	}
	var payload OutboxDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("outbox delivery: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskOutboxDeliver)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(
		slog.String("event_id", payload.EventID.String()),
		slog.String("tenant_id", payload.TenantID.String()),
		slog.String("event_type", string(payload.EventType)),
	)
	evt, err := outbox.Decode(payload.EventType, payload.Payload)
	if err != nil {
		logger.Error("undecodable outbox event", slog.Any("error", err))
		return fmt.Errorf("outbox delivery: %v: %w", err, asynq.SkipRetry)
	}

	if outbox.AffectsLedger(payload.EventType) && j.Reports != nil {
		if err := j.Reports.Invalidate(ctx, payload.TenantID); err != nil {
			logger.Warn("report invalidation failed", slog.Any("error", err))
			return fmt.Errorf("outbox delivery: invalidate: %w", err)
		}
	}
	j.Metrics.ObserveDelivery(payload.CreatedAt)
	logger.Debug("outbox event delivered", slog.String("aggregate_id", evt.AggregateID()))
	return nil
}

func (j *OutboxDeliveryJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

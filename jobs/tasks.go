package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueOutbox carries relayed outbox events.
	QueueOutbox = "outbox"
	// TaskOutboxDeliver delivers one outbox event to its in-process consumers.
	TaskOutboxDeliver = "ledger:outbox-deliver"
	// TaskGLIntegrity reconciles trial balance and subledgers for every tenant.
	TaskGLIntegrity = "ledger:gl-integrity"
)

// OutboxDeliverPayload is the task form of an outbox message.
type OutboxDeliverPayload struct {
	EventID     uuid.UUID        `json:"event_id"`
	TenantID    uuid.UUID        `json:"tenant_id"`
	EventType   outbox.EventType `json:"event_type"`
	AggregateID string           `json:"aggregate_id"`
	Payload     json.RawMessage  `json:"payload"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewOutboxDeliverTask wraps an outbox message into an Asynq task.
func NewOutboxDeliverTask(msg outbox.Message) (*asynq.Task, error) {
	payload := OutboxDeliverPayload{
		EventID:     msg.EventID,
		TenantID:    msg.TenantID,
		EventType:   msg.EventType,
		AggregateID: msg.AggregateID,
		Payload:     json.RawMessage(msg.Payload),
		CreatedAt:   msg.CreatedAt,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutboxDeliver, data), nil
}

// GLIntegrityPayload narrows a run. Zero values check every tenant as of today.
type GLIntegrityPayload struct {
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
	AsOf     string     `json:"as_of,omitempty"`
}

// NewGLIntegrityTask constructs an integrity check task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data), nil
}

package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// QueueInspector is the part of asynq.Inspector the jobs endpoint reads.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler serves queue depth for operators at /jobs.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler builds the jobs endpoint.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches the jobs routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

// QueueStats summarises one queue.
type QueueStats struct {
	Queue     string        `json:"queue"`
	Pending   int           `json:"pending"`
	Active    int           `json:"active"`
	Scheduled int           `json:"scheduled"`
	Retry     int           `json:"retry"`
	Dead      int           `json:"dead"`
	Paused    bool          `json:"paused"`
	Latency   time.Duration `json:"latency_ns"`
}

// InspectQueues reads the counters of queues, defaulting to the ledger queues. A queue that
// never received a task reports zeros.
func InspectQueues(inspector QueueInspector, queues ...string) ([]QueueStats, error) {
	if inspector == nil {
		return nil, errors.New("jobs: inspector not configured")
	}
	if len(queues) == 0 {
		queues = []string{QueueOutbox, QueueDefault}
	}
	out := make([]QueueStats, 0, len(queues))
	for _, name := range queues {
		stats := QueueStats{Queue: name}
		info, err := inspector.GetQueueInfo(name)
		switch {
		case errors.Is(err, asynq.ErrQueueNotFound):
		case err != nil:
			return nil, fmt.Errorf("jobs: inspect %s: %w", name, err)
		default:
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Dead = info.Archived
			stats.Paused = info.Paused
			stats.Latency = info.Latency
		}
		out = append(out, stats)
	}
	return out, nil
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	var queues []string
	if q := r.URL.Query().Get("queue"); q != "" {
		queues = append(queues, q)
	}
	stats, err := InspectQueues(h.inspector, queues...)
	if err != nil {
		h.logger.Warn("queue inspection failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "job queues cannot be inspected")
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

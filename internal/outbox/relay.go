package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Publisher hands a message to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// RelayConfig tunes the polling loop.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Retention    time.Duration
}

// Relay moves committed outbox rows to a Publisher, at least once.
type Relay struct {
	store     Store
	publisher Publisher
	cfg       RelayConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewRelay constructs a Relay with defaults for zero config values.
func NewRelay(store Store, publisher Publisher, cfg RelayConfig, logger *slog.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{store: store, publisher: publisher, cfg: cfg, logger: logger, now: time.Now}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	r.logger.Info("outbox relay started", slog.Duration("poll_interval", r.cfg.PollInterval), slog.Int("batch_size", r.cfg.BatchSize))
	for {
		for {
			n, err := r.Tick(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("outbox relay tick", slog.Any("error", err))
			}
			if err != nil || n < r.cfg.BatchSize {
				break
			}
		}
		if r.cfg.Retention > 0 {
			if purged, err := r.store.Purge(ctx, r.now().Add(-r.cfg.Retention)); err != nil {
				r.logger.Warn("outbox purge", slog.Any("error", err))
			} else if purged > 0 {
				r.logger.Debug("outbox purged", slog.Int64("rows", purged))
			}
		}
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick claims and publishes one batch. It returns the number of claimed messages.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	batch, err := r.store.Claim(ctx, r.cfg.BatchSize, r.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}
	msgs := batch.Messages()
	for _, msg := range msgs {
		if err := r.publisher.Publish(ctx, msg); err != nil {
			r.logger.Error("outbox publish failed",
				slog.Int64("id", msg.ID),
				slog.String("event_type", string(msg.EventType)),
				slog.Int("attempts", msg.Attempts+1),
				slog.Any("error", err))
			if markErr := batch.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
				_ = batch.Rollback(ctx)
				return 0, markErr
			}
			continue
		}
		if err := batch.MarkPublished(ctx, msg.ID, r.now()); err != nil {
			_ = batch.Rollback(ctx)
			return 0, err
		}
	}
	if err := batch.Commit(ctx); err != nil {
		return 0, err
	}
	return len(msgs), nil
}

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/claims-api/pkg/logger"
)

// OutboxPruner deletes processed outbox events older than a cutoff.
type OutboxPruner interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// OutboxCleanupWorker keeps the outbox table from growing without bound.
// Failed events are kept for inspection.
type OutboxCleanupWorker struct {
	repo            OutboxPruner
	retention       time.Duration
	cleanupInterval time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewOutboxCleanupWorker(repo OutboxPruner, retentionDays int, cleanupInterval time.Duration, log *logger.Logger) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:            repo,
		retention:       time.Duration(retentionDays) * 24 * time.Hour,
		cleanupInterval: cleanupInterval,
		logger:          log,
		now:             time.Now,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error(err, "Outbox cleanup failed")
			}
		}
	}
}

func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}
	if rows > 0 {
		w.logger.Info("Cleaned up outbox events", "rows", rows, "before", cutoff.Format(time.RFC3339))
	}
	return rows, nil
}

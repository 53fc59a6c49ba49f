package scheduler

import (
	"context"
	"log/slog"
	"time"

	"editorial_sync/internal/domain"
)

// Syncer runs one full-import invocation.
type Syncer interface {
	Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncOutcome, error)
}

// Scheduler triggers a periodic full WordPress import with fixed
// options. Manually triggered operations go through the HTTP API and do
// not pass through here.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	opts     domain.SyncOptions
	logger   *slog.Logger
}

// ImportOptions builds the fixed option set used for scheduled full
// imports: update-in-place duplicate handling with full content
// processing.
func ImportOptions(maxArticles, apiDelayMS int) domain.SyncOptions {
	return domain.SyncOptions{
		MaxArticles: maxArticles,
		Processing: domain.ProcessingOptions{
			AutoExtractContent:     true,
			AutoCalculateWordCount: true,
		},
		Performance: domain.PerformanceOptions{APIDelayMS: apiDelayMS},
		Duplicates:  domain.DuplicateHandling{Mode: domain.DuplicateUpdate},
	}
}

func NewScheduler(syncer Syncer, interval time.Duration, opts domain.SyncOptions, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		opts:     opts,
		logger:   logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, 15*time.Minute)
	defer cancel()

	outcome, err := s.syncer.Sync(syncCtx, s.opts)
	if err != nil {
		s.logger.Error("scheduled sync failed", "error", err)
		return
	}
	s.logger.Info("scheduled sync finished",
		"operation_id", outcome.OperationID,
		"processed", outcome.Results.Processed,
		"created", outcome.Results.Created,
		"updated", outcome.Results.Updated,
	)
}

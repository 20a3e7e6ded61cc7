package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CleanerConfig holds configuration for the retention cleaner.
type CleanerConfig struct {
	// RetentionDays is the age horizon; notifications created earlier are
	// purged.
	RetentionDays int

	// BatchSize is the maximum number of rows deleted per round trip.
	BatchSize int
}

// Cleaner purges notifications older than the retention horizon. Runs are
// scheduled via cron and guarded against overlap; a run is cancellable
// between batches and idempotent, so an aborted cycle is simply finished by
// the next one.
type Cleaner struct {
	store  NotificationStore
	config CleanerConfig
}

// NewCleaner creates a new retention cleaner.
func NewCleaner(store NotificationStore, cfg CleanerConfig) *Cleaner {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 60
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Cleaner{store: store, config: cfg}
}

// Cleanup deletes all notifications older than retentionDays and returns the
// deleted count. Deletion proceeds in batches with a cancellation check
// between each.
func (c *Cleaner) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = c.config.RetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	slog.Info("cleanup started", "retention_days", retentionDays, "cutoff", cutoff)

	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			slog.Warn("cleanup cancelled", "deleted", deleted)
			return deleted, err
		}

		ids, err := c.store.ListExpiredIDs(ctx, cutoff, c.config.BatchSize)
		if err != nil {
			return deleted, fmt.Errorf("listing expired notifications: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		if err := c.store.DeleteByIDs(ctx, ids); err != nil {
			return deleted, fmt.Errorf("deleting expired notifications: %w", err)
		}
		deleted += len(ids)

		if len(ids) < c.config.BatchSize {
			break
		}
	}

	slog.Info("cleanup completed", "deleted", deleted, "retention_days", retentionDays)
	return deleted, nil
}

// Job returns a cron-compatible function running one cleanup cycle. Errors
// are logged, never propagated: a failed cycle is retried by the next
// scheduled run.
func (c *Cleaner) Job(ctx context.Context) func() {
	return func() {
		if _, err := c.Cleanup(ctx, c.config.RetentionDays); err != nil && ctx.Err() == nil {
			slog.Error("cleanup cycle failed", "error", err)
		}
	}
}

// Schedule registers the cleaner on a new cron instance using the given
// schedule expression. SkipIfStillRunning prevents overlapping runs; Recover
// keeps a panicking cycle from crashing the host.
func (c *Cleaner) Schedule(ctx context.Context, expr string) (*cron.Cron, error) {
	logger := cronLogger{}
	scheduler := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	if _, err := scheduler.AddFunc(expr, c.Job(ctx)); err != nil {
		return nil, fmt.Errorf("parsing cleanup schedule %q: %w", expr, err)
	}

	return scheduler, nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Info("cleanup scheduler: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"error", err}, keysAndValues...)
	slog.Error("cleanup scheduler: "+msg, args...)
}

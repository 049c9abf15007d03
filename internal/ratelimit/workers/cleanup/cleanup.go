package cleanup

import (
	"context"
	"log/slog"
	"time"

	"bureau/internal/ratelimit/metrics"
)

// RateLimitCleaner deletes expired rate-limit data; the JTI sweeper
// removes registry rows for tokens that can no longer verify.
type RateLimitCleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

type JTISweeper interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithJTISweeper wires the optional long-lived-token registry sweep into
// the same periodic run.
func WithJTISweeper(sweeper JTISweeper, maxAge time.Duration) Option {
	return func(w *Worker) {
		w.jtiSweeper = sweeper
		w.jtiMaxAge = maxAge
	}
}

// Worker periodically purges expired rate-limit records and, when
// configured, stale JTI registry rows.
type Worker struct {
	cleaner    RateLimitCleaner
	jtiSweeper JTISweeper
	jtiMaxAge  time.Duration
	logger     *slog.Logger
	interval   time.Duration
	metrics    *metrics.Metrics
}

func New(cleaner RateLimitCleaner, opts ...Option) *Worker {
	w := &Worker{
		cleaner:  cleaner,
		logger:   slog.Default(),
		interval: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the cleanup loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			deleted, err := w.RunOnce(ctx)
			duration := time.Since(start)

			if err != nil {
				w.logger.Error("ratelimit_cleanup_failed",
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
				if w.metrics != nil {
					w.metrics.IncrementCleanupRuns("error")
					w.metrics.ObserveCleanupDuration(duration.Seconds())
				}
				continue
			}

			w.logger.Info("ratelimit_cleanup_completed",
				"rows_deleted", deleted,
				"duration_ms", duration.Milliseconds(),
			)
			if w.metrics != nil {
				w.metrics.AddCleanupDeleted(deleted)
				w.metrics.IncrementCleanupRuns("success")
				w.metrics.ObserveCleanupDuration(duration.Seconds())
			}

		case <-ctx.Done():
			w.logger.Info("ratelimit cleanup worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single cleanup pass. Logging is handled by the
// caller (Start) or the CLI.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	deleted, err := w.cleaner.Cleanup(ctx)
	if err != nil {
		return 0, err
	}
	if w.jtiSweeper != nil && w.jtiMaxAge > 0 {
		swept, err := w.jtiSweeper.DeleteExpiredBefore(ctx, time.Now().Add(-w.jtiMaxAge))
		if err != nil {
			return deleted, err
		}
		deleted += swept
	}
	return deleted, nil
}

package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often StartSweeper discards stale state when
// no interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// StartSweeper runs a background loop that periodically discards expired
// rate windows and idle tier records to bound memory. It blocks until ctx
// is cancelled, so callers run it in its own goroutine.
func StartSweeper(
	ctx context.Context,
	interval time.Duration,
	limiter *Limiter,
	tiers *TierCache,
	logger *slog.Logger,
) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "ratelimit_sweeper"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("sweeper stopping", "reason", ctx.Err())
			return

		case <-ticker.C:
			windows := 0
			records := 0
			if limiter != nil {
				windows = limiter.Sweep()
			}
			if tiers != nil {
				records = tiers.Sweep()
			}
			if windows > 0 || records > 0 {
				logger.Debug("swept stale rate-limit state",
					"windows_removed", windows,
					"tier_records_removed", records)
			}
		}
	}
}

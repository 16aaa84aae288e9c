package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ErrAdmissionDenied is wrapped into the error returned by Admit when the
// context expires before a slot opens.
var ErrAdmissionDenied = fmt.Errorf("admission denied")

// Admission gates outbound model calls behind the rate limiter. Callers
// block until a slot is available in the current window or the context is
// cancelled.
type Admission struct {
	limiter *Limiter
	tiers   *TierCache
	apiKey  string
	tier    Tier
	now     func() time.Time
	logger  *slog.Logger
}

// NewAdmission creates an admission gate for the given API key. The
// explicit tier is passed through TierCache.Classify, so an empty tier
// falls back to the cached or default classification.
func NewAdmission(
	limiter *Limiter,
	tiers *TierCache,
	apiKey string,
	explicit Tier,
	logger *slog.Logger,
) *Admission {
	if logger == nil {
		logger = slog.Default()
	}

	return &Admission{
		limiter: limiter,
		tiers:   tiers,
		apiKey:  apiKey,
		tier:    explicit,
		now:     limiter.now,
		logger:  logger.With(slog.String("component", "admission")),
	}
}

// Admit blocks until the given category has capacity for one more call and
// consumes that slot. When the current window is exhausted it sleeps until
// the window resets, then re-checks. Returns ctx.Err() wrapped with
// ErrAdmissionDenied if the context is cancelled while waiting.
func (a *Admission) Admit(ctx context.Context, category Category) error {
	for {
		tier := a.tiers.Classify(a.apiKey, a.tier)
		result := a.limiter.Check(a.identifier(category), LimitFor(category, tier))
		if result.Allowed {
			return nil
		}

		wait := result.ResetAt.Sub(a.now())
		if wait < 0 {
			wait = 0
		}

		a.logger.InfoContext(ctx, "rate limit reached, waiting for window reset",
			slog.String("category", string(category)),
			slog.String("tier", string(tier)),
			slog.Duration("wait", wait))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrAdmissionDenied, ctx.Err())
		}
	}
}

// identifier scopes windows per key and category so one category cannot
// starve another.
func (a *Admission) identifier(category Category) string {
	return hashKey(a.apiKey) + ":" + string(category)
}

package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Default configuration values applied by NewExecutor when a field is unset.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialDelay      = 500 * time.Millisecond
	DefaultMaxDelay          = 30 * time.Second
	DefaultBackoffMultiplier = 2.0

	// maxJitterFraction bounds the random jitter added to each backoff
	// delay to at most +20% of the computed value.
	maxJitterFraction = 0.2
)

// Config holds the retry policy for an Executor.
type Config struct {
	// MaxAttempts is the total number of tries, including the first one.
	// Must be at least 1.
	MaxAttempts int

	// InitialDelay is the backoff delay before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// BackoffMultiplier is the factor applied to the delay after each
	// failed attempt.
	BackoffMultiplier float64

	// RetryableMatchers are consulted in addition to the built-in
	// transient signatures when classifying errors.
	RetryableMatchers []Matcher

	// OnRetry, when set, is invoked before each backoff wait with the
	// 1-based attempt number that just failed, the error, and the delay
	// that will be slept.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Option overrides part of an Executor's configuration for a single call.
type Option func(*Config)

// WithMaxAttempts overrides the total attempt budget.
func WithMaxAttempts(n int) Option {
	return func(c *Config) { c.MaxAttempts = n }
}

// WithInitialDelay overrides the first backoff delay.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) { c.InitialDelay = d }
}

// WithMaxDelay overrides the backoff delay cap.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) { c.MaxDelay = d }
}

// WithBackoffMultiplier overrides the backoff growth factor.
func WithBackoffMultiplier(m float64) Option {
	return func(c *Config) { c.BackoffMultiplier = m }
}

// WithMatchers appends additional retryable-error matchers.
func WithMatchers(matchers ...Matcher) Option {
	return func(c *Config) {
		c.RetryableMatchers = append(c.RetryableMatchers, matchers...)
	}
}

// WithOnRetry overrides the retry observer callback.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// Delay computes the backoff delay to wait after the given 1-based failed
// attempt: min(InitialDelay * BackoffMultiplier^(attempt-1), MaxDelay).
// The result carries no jitter, which keeps it a pure function of the
// attempt number.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if max := float64(c.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// normalized returns a copy of the config with defaults applied to unset or
// invalid fields.
func (c Config) normalized() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = DefaultBackoffMultiplier
	}
	return c
}

// Executor runs operations under a retry policy. A single Executor is safe
// for concurrent use by many jobs; per-call overrides never mutate the
// shared configuration.
type Executor struct {
	config Config
	logger *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewExecutor creates an Executor with the given base configuration.
// Zero or invalid config fields fall back to the package defaults.
// If logger is nil, the default logger is used.
func NewExecutor(config Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		config: config.normalized(),
		logger: logger.With(slog.String("component", "retry_executor")),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do invokes op, retrying on transient errors with capped exponential
// backoff plus jitter. The per-call options are applied on top of the
// executor's base configuration.
//
// On success the result is returned immediately, even on a later attempt.
// Non-retryable errors are returned after a single attempt. When attempts
// are exhausted, the most recent underlying error is returned unchanged so
// callers can still classify it with errors.Is. If the context is cancelled
// before an attempt or during a backoff wait, ctx.Err() is returned.
func (e *Executor) Do(ctx context.Context, op func(context.Context) error, opts ...Option) error {
	cfg := e.config
	cfg.RetryableMatchers = append([]Matcher(nil), e.config.RetryableMatchers...)
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.normalized()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				e.logger.InfoContext(ctx, "operation succeeded after retry",
					"attempt", attempt)
			}
			return nil
		}
		lastErr = err

		if !IsRetryable(err, cfg.RetryableMatchers...) {
			e.logger.DebugContext(ctx, "non-retryable error, giving up",
				"attempt", attempt,
				"error", err)
			return err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Delay(attempt)
		delay += e.jitter(delay)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		e.logger.InfoContext(ctx, "retrying after transient error",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			// Continue to next attempt
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	e.logger.WarnContext(ctx, "retry attempts exhausted",
		"max_attempts", cfg.MaxAttempts,
		"error", lastErr)
	return lastErr
}

// jitter returns a random duration in [0, maxJitterFraction*delay].
func (e *Executor) jitter(delay time.Duration) time.Duration {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return time.Duration(e.rng.Float64() * maxJitterFraction * float64(delay))
}

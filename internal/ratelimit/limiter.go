package ratelimit

import (
	"log/slog"
	"time"
)

// Config holds the limit applied to one identifier within one window.
type Config struct {
	// Limit is the maximum number of allowed requests per window.
	Limit int

	// Window is the length of the counting window.
	Window time.Duration
}

// Result is the outcome of an admission check. A denied result is not an
// error: Remaining is 0 and ResetAt tells the caller when a fresh window
// begins (a "retry after ResetAt minus now" signal).
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is the per-identifier fixed-window admission gate.
type Limiter struct {
	store  WindowStore
	now    func() time.Time
	logger *slog.Logger
}

// NewLimiter creates a Limiter over the given window store.
// If now is nil, time.Now is used. If logger is nil, the default logger
// is used.
func NewLimiter(store WindowStore, now func() time.Time, logger *slog.Logger) *Limiter {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Limiter{
		store:  store,
		now:    now,
		logger: logger.With(slog.String("component", "rate_limiter")),
	}
}

// Check performs one fixed-window admission check for identifier under cfg.
// The check-and-increment is applied atomically with respect to concurrent
// callers using the same identifier.
//
// If no window exists, or the existing window has expired, a fresh window
// with count 1 is created and the request is allowed. Otherwise the request
// is allowed while the count is below the limit; once the count reaches the
// limit every further request in the window is denied with Remaining 0 and
// the existing reset time.
func (l *Limiter) Check(identifier string, cfg Config) Result {
	now := l.now()

	var allowed bool
	stored := l.store.Update(identifier, func(current *Window) Window {
		if current == nil || now.After(current.ResetAt) {
			allowed = true
			return Window{Count: 1, ResetAt: now.Add(cfg.Window)}
		}

		if current.Count < cfg.Limit {
			allowed = true
			return Window{Count: current.Count + 1, ResetAt: current.ResetAt}
		}

		allowed = false
		return *current
	})

	remaining := cfg.Limit - stored.Count
	if remaining < 0 {
		remaining = 0
	}
	if !allowed {
		remaining = 0
		l.logger.Debug("admission denied",
			"identifier", identifier,
			"limit", cfg.Limit,
			"reset_at", stored.ResetAt)
	}

	return Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   stored.ResetAt,
	}
}

// Sweep discards expired windows to bound memory. Returns the number of
// windows removed.
func (l *Limiter) Sweep() int {
	return l.store.Sweep(l.now())
}

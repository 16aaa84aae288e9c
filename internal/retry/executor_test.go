package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig returns a policy with delays small enough for real sleeps.
func testConfig() Config {
	return Config{
		MaxAttempts:       4,
		InitialDelay:      time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()
	e := NewExecutor(testConfig(), nil)

	calls := 0
	retries := 0
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, WithOnRetry(func(int, error, time.Duration) { retries++ }))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, retries, "OnRetry must not fire on immediate success")
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()
	e := NewExecutor(testConfig(), nil)

	transient := errors.New("upstream overloaded")
	calls := 0
	var retryAttempts []int
	var retryDelays []time.Duration

	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	}, WithOnRetry(func(attempt int, err error, delay time.Duration) {
		retryAttempts = append(retryAttempts, attempt)
		retryDelays = append(retryDelays, delay)
	}))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// OnRetry fires exactly attempts-1 times with 1-based attempt numbers.
	assert.Equal(t, []int{1, 2}, retryAttempts)

	cfg := testConfig()
	for i, delay := range retryDelays {
		base := cfg.Delay(i + 1)
		assert.GreaterOrEqual(t, delay, base, "delay below computed backoff")
		assert.LessOrEqual(t, delay, base+base/5, "jitter above +20%")
	}
}

func TestDoNonRetryableFailsAfterOneAttempt(t *testing.T) {
	t.Parallel()
	e := NewExecutor(testConfig(), nil)

	fatal := errors.New("invalid request payload")
	calls := 0

	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})

	assert.Equal(t, 1, calls)
	// The original error is surfaced verbatim, not wrapped.
	assert.Equal(t, fatal, err)
}

func TestDoExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	t.Parallel()
	e := NewExecutor(testConfig(), nil)

	calls := 0
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("attempt %d: rate limit exceeded", calls)
	})

	assert.Equal(t, 4, calls)
	require.Error(t, err)
	assert.Equal(t, "attempt 4: rate limit exceeded", err.Error())
}

func TestDoCustomMatcher(t *testing.T) {
	t.Parallel()
	e := NewExecutor(testConfig(), nil)

	sentinel := errors.New("quota check pending")
	calls := 0

	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return sentinel
		}
		return nil
	}, WithMatchers(func(err error) bool { return errors.Is(err, sentinel) }))

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoCancelledBeforeAttempt(t *testing.T) {
	t.Parallel()
	e := NewExecutor(testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := e.Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.Equal(t, 0, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.InitialDelay = time.Hour // would hang without cancellation
	cfg.MaxDelay = time.Hour
	e := NewExecutor(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- e.Do(ctx, func(ctx context.Context) error {
			calls++
			return errors.New("connection refused")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation during backoff")
	}
}

func TestConfigDelayIsCapped(t *testing.T) {
	t.Parallel()
	cfg := Config{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
	}

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}

	var previous time.Duration
	for i, want := range expected {
		got := cfg.Delay(i + 1)
		assert.Equal(t, want, got, "attempt %d", i+1)
		assert.GreaterOrEqual(t, got, previous, "delays must be non-decreasing")
		previous = got
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"timeout", errors.New("request timeout"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"overloaded", errors.New("model is overloaded"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"http 429", errors.New("unexpected status 429"), true},
		{"http 503", errors.New("503 service unavailable"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"validation", errors.New("invalid api key"), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.retryable, IsRetryable(tc.err))
		})
	}
}

func TestNewExecutorAppliesDefaults(t *testing.T) {
	t.Parallel()
	e := NewExecutor(Config{}, nil)

	assert.Equal(t, DefaultMaxAttempts, e.config.MaxAttempts)
	assert.Equal(t, DefaultInitialDelay, e.config.InitialDelay)
	assert.Equal(t, DefaultMaxDelay, e.config.MaxDelay)
	assert.Equal(t, DefaultBackoffMultiplier, e.config.BackoffMultiplier)
}

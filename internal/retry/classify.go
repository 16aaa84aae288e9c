package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Matcher reports whether an error should be treated as retryable.
type Matcher func(error) bool

// transientSignatures are substrings of error messages that indicate a
// transient upstream condition: timeouts, connection failures, overload,
// and rate limiting (HTTP 429/503-style responses from API clients).
var transientSignatures = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"connection closed",
	"broken pipe",
	"tls handshake timeout",
	"eof",
	"overloaded",
	"rate limit",
	"too many requests",
	"resource exhausted",
	"service unavailable",
	"429",
	"503",
}

// IsRetryable classifies an error as retryable. An error is retryable if it
// matches any of the supplied matchers or the built-in transient signatures.
// Context cancellation is never retryable: the caller has given up.
func IsRetryable(err error, matchers ...Matcher) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	for _, match := range matchers {
		if match != nil && match(err) {
			return true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, signature := range transientSignatures {
		if strings.Contains(msg, signature) {
			return true
		}
	}

	return false
}

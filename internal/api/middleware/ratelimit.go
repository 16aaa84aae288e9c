package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/storyloom/storyboard-api/internal/api/shared"
	"github.com/storyloom/storyboard-api/internal/ratelimit"
)

// RateLimitMiddleware applies a per-client fixed-window limit to the routes
// it wraps. Clients are identified by API key header when present, falling
// back to the remote IP. Denied requests get 429 with a Retry-After header.
func RateLimitMiddleware(
	limiter *ratelimit.Limiter,
	tiers *ratelimit.TierCache,
	category ratelimit.Category,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			tier := tiers.Classify(key, explicitTier(r))

			result := limiter.Check(key+":"+string(category), ratelimit.LimitFor(category, tier))

			w.Header().Set("X-RateLimit-Limit",
				strconv.Itoa(ratelimit.LimitFor(category, tier).Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset",
				strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := int(time.Until(result.ResetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests,
					"Rate limit exceeded, retry later", nil,
					shared.WithElevatedLogLevel())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey derives the rate-limiting identity for a request. An API key
// header wins over the remote address so NATed clients with keys are not
// lumped together.
func clientKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// explicitTier reads a client-asserted tier header. Returns the empty tier
// when absent or unknown so classification falls back to the cache.
func explicitTier(r *http.Request) ratelimit.Tier {
	switch r.Header.Get("X-API-Tier") {
	case string(ratelimit.TierPaid):
		return ratelimit.TierPaid
	case string(ratelimit.TierFree):
		return ratelimit.TierFree
	default:
		return ""
	}
}

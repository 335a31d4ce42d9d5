package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/empower-grid/gridauth"
)

// RateLimit enforces the sliding-window quota for the request's operation
// class before the handler runs. The identifier is the authenticated user
// when a guard ran earlier in the chain, otherwise the source IP. Window
// state is reported on every response via X-RateLimit headers; exhausted
// windows answer 429 with Retry-After.
func RateLimit(engine *gridauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			class := gridauth.ClassifyOperation(r.Method, r.URL.Path)
			identifier := identifierFor(r)

			res, err := engine.CheckOperation(r.Context(), identifier, class)
			if err != nil {
				if errors.Is(err, gridauth.ErrRateLimited) {
					writeRateHeaders(w, res)
					retry := int(res.RetryAfter.Seconds())
					if retry < 1 {
						retry = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(retry))
					http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
					return
				}
				// Quota state unavailable. Failing open here would let an
				// outage disable limits entirely.
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			writeRateHeaders(w, res)
			next.ServeHTTP(w, r)
		})
	}
}

func identifierFor(r *http.Request) string {
	if res, ok := AuthResultFromContext(r.Context()); ok {
		return gridauth.ResolveIdentifier(res.UserID, res.WalletAddress, "")
	}
	return gridauth.ResolveIdentifier("", "", clientIP(r))
}

func writeRateHeaders(w http.ResponseWriter, res gridauth.RateLimitResult) {
	if res.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
}

package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"gatekit/pkg/logger"
	"gatekit/pkg/telemetry"
	"gatekit/pkg/web"
)

// KeyFunc derives the rate-limit identity for a request.
type KeyFunc func(*web.Request) string

// DefaultKeyFunc keys on the resolved client address. Trust resolution
// happened upstream (trust.Middleware); raw forwarded headers are never
// consulted here.
func DefaultKeyFunc(req *web.Request) string { return req.RemoteAddr() }

// Middleware enforces l per key. Blocked requests get 429 with Retry-After
// and zeroed X-RateLimit headers; allowed requests carry the informational
// headers through.
func Middleware(l *Limiter, keyFunc KeyFunc) web.Middleware {
	if keyFunc == nil {
		keyFunc = DefaultKeyFunc
	}
	return func(req *web.Request, res *web.Response) {
		key := keyFunc(req)

		if !l.IsAllowed(key) {
			retry := int(math.Ceil(l.ResetTime(key).Seconds()))
			res.Header("Retry-After", strconv.Itoa(retry))
			res.Header("X-RateLimit-Limit", strconv.Itoa(l.Limit()))
			res.Header("X-RateLimit-Remaining", "0")
			res.JSONError(http.StatusTooManyRequests, "Too Many Requests",
				"Rate limit exceeded. Please try again later.")
			telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonRateLimited).Inc()
			logger.Warn("rate_limited", "key", key, "path", req.URL())
			return
		}

		res.Header("X-RateLimit-Limit", strconv.Itoa(l.Limit()))
		res.Header("X-RateLimit-Remaining", strconv.Itoa(l.RemainingRequests(key)))
		reset := time.Now().Add(l.ResetTime(key)).Unix()
		res.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
	}
}

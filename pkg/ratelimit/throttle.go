package ratelimit

import (
	"net/http"

	"golang.org/x/time/rate"

	"gatekit/pkg/logger"
	"gatekit/pkg/telemetry"
	"gatekit/pkg/web"
)

// Throttle is a server-wide token-bucket cap on total request throughput.
// It smooths bursts across all clients and complements, never replaces, the
// per-key sliding-window Limiter.
type Throttle struct {
	lim *rate.Limiter
}

// NewThrottle builds a throttle allowing rps requests per second with the
// given burst. Non-positive values fall back to 5 rps / burst 10.
func NewThrottle(rps float64, burst int) *Throttle {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Throttle{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Middleware rejects with 429 once the global bucket is drained.
func (t *Throttle) Middleware() web.Middleware {
	return func(req *web.Request, res *web.Response) {
		if t.lim.Allow() {
			return
		}
		res.Header("Retry-After", "1")
		res.JSONError(http.StatusTooManyRequests, "Too Many Requests",
			"Server is over capacity. Please try again later.")
		telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonThrottled).Inc()
		logger.Warn("throttled", "path", req.URL())
	}
}

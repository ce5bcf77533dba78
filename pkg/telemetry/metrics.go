package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request counters for the middleware chain. Rejections are labeled by
// reason so dashboards can separate rate limiting from policy denials.
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekit_requests_total",
		Help: "Requests entering the middleware chain, by method.",
	}, []string{"method"})

	RejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekit_rejected_total",
		Help: "Requests rejected by a middleware, by reason.",
	}, []string{"reason"})

	RateLimitEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekit_ratelimit_evictions_total",
		Help: "Rate limiter keys evicted to stay within the entry cap.",
	})

	BodyAborts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekit_body_aborts_total",
		Help: "Request bodies aborted for exceeding the size ceiling.",
	})
)

// Rejection reason labels shared by middlewares.
const (
	ReasonRateLimited   = "rate_limited"
	ReasonThrottled     = "throttled"
	ReasonCSRF          = "csrf"
	ReasonUntrustedHost = "untrusted_host"
	ReasonBadRequest    = "bad_request"
)

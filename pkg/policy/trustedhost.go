package policy

import (
	"net/http"

	"gatekit/pkg/logger"
	"gatekit/pkg/telemetry"
	"gatekit/pkg/web"
)

// TrustedHost validates the resolved Host against an allowlist. The host
// read here is the one the trust resolver verified; raw forwarded-host
// headers never reach this check.
func TrustedHost(allowedHosts []string) web.Middleware {
	return func(req *web.Request, res *web.Response) {
		host := req.Host()
		if malformedHost(host) {
			res.JSONError(http.StatusBadRequest, "Bad Request", "Invalid Host header")
			telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonBadRequest).Inc()
			logger.Warn("host_malformed", "host", host, "remote", req.RemoteAddr())
			return
		}
		if !hostAllowed(allowedHosts, host) {
			res.JSONError(http.StatusBadRequest, "Bad Request", "Untrusted host")
			telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonUntrustedHost).Inc()
			logger.Warn("host_untrusted", "host", host, "remote", req.RemoteAddr())
			return
		}
	}
}

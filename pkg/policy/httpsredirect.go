package policy

import (
	"net/http"

	"gatekit/pkg/logger"
	"gatekit/pkg/telemetry"
	"gatekit/pkg/web"
)

// HTTPSRedirectConfig tunes the http-to-https redirect.
type HTTPSRedirectConfig struct {
	// RedirectStatusCode is 301 or 302; anything else falls back to 301.
	RedirectStatusCode int
	// AllowedHosts, when set, restricts which Host values may appear in
	// the redirect target (same patterns as TrustedHost).
	AllowedHosts []string
}

// HTTPSRedirect redirects plain-http requests to https. The scheme checked
// is the one the trust resolver verified, never a raw forwarded header.
// The Host header is validated before it is embedded in a Location URL.
func HTTPSRedirect(cfg HTTPSRedirectConfig) web.Middleware {
	code := cfg.RedirectStatusCode
	if code != http.StatusMovedPermanently && code != http.StatusFound {
		code = http.StatusMovedPermanently
	}
	return func(req *web.Request, res *web.Response) {
		if req.Scheme() == "https" {
			return
		}

		host := req.Host()
		if host == "" {
			// Cannot build a redirect target safely.
			res.JSONError(http.StatusBadRequest, "Bad Request", "Missing Host header")
			telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonBadRequest).Inc()
			return
		}
		if malformedHost(host) {
			res.JSONError(http.StatusBadRequest, "Bad Request", "Invalid Host header")
			telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonBadRequest).Inc()
			logger.Warn("redirect_host_malformed", "host", host, "remote", req.RemoteAddr())
			return
		}
		if len(cfg.AllowedHosts) > 0 && !hostAllowed(cfg.AllowedHosts, host) {
			res.JSONError(http.StatusBadRequest, "Bad Request", "Untrusted host")
			telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonUntrustedHost).Inc()
			logger.Warn("redirect_host_untrusted", "host", host, "remote", req.RemoteAddr())
			return
		}

		target := "https://" + host + req.URL()
		if q := req.Query(); q != "" {
			target += "?" + q
		}
		res.Redirect(target, code)
	}
}

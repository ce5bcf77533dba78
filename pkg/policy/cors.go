package policy

import (
	"net/http"
	"strconv"
	"strings"

	"gatekit/pkg/logger"
	"gatekit/pkg/web"
)

// CORSConfig declares the cross-origin policy.
type CORSConfig struct {
	// AllowedOrigins is an explicit origin allowlist, or ["*"].
	AllowedOrigins []string
	// AllowedMethods and AllowedHeaders fill the preflight response.
	AllowedMethods []string
	AllowedHeaders []string
	// AllowCredentials permits cookies/authorization on cross-origin
	// calls. Combined with a wildcard origin list this is effectively
	// allow-all-with-credentials; see CORS construction warning.
	AllowCredentials bool
	// MaxAgeSeconds caches preflight results; 0 means 600.
	MaxAgeSeconds int
}

// CORS builds the cross-origin middleware. An allowed origin is echoed back
// verbatim; a wildcard list without credentials emits the literal "*" and
// never reflects, which closes the wildcard-plus-credentials hole. OPTIONS
// requests short-circuit with 204.
func CORS(cfg CORSConfig) web.Middleware {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	if wildcard && cfg.AllowCredentials {
		// The CORS spec forbids "*" with credentials, so the origin is
		// reflected instead. Integrators opted into allow-all here.
		logger.Warn("cors_wildcard_with_credentials",
			"detail", "reflecting Origin for every caller; this is effectively allow-all with credentials")
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Authorization", "Content-Type", "X-CSRF-Token"}
	}
	maxAge := cfg.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = 600
	}

	methodsVal := strings.Join(methods, ",")
	headersVal := strings.Join(headers, ",")
	maxAgeVal := strconv.Itoa(maxAge)

	return func(req *web.Request, res *web.Response) {
		origin := req.GetHeader("origin")
		if origin != "" {
			allowValue := ""
			switch {
			case wildcard && !cfg.AllowCredentials:
				allowValue = "*"
			case wildcard && cfg.AllowCredentials:
				allowValue = origin
			case originAllowed(origin, origins):
				allowValue = origin
			}

			if allowValue != "" {
				res.Header("Access-Control-Allow-Origin", allowValue)
				res.Header("Access-Control-Allow-Methods", methodsVal)
				res.Header("Access-Control-Allow-Headers", headersVal)
				res.Header("Access-Control-Max-Age", maxAgeVal)
				if cfg.AllowCredentials {
					res.Header("Access-Control-Allow-Credentials", "true")
				}
			}
			if allowValue != "*" {
				// The answer depended on the request's Origin; caching
				// intermediaries must not serve it cross-client.
				res.Header("Vary", "Origin")
			}
		}

		if req.Method() == http.MethodOptions {
			res.Status(http.StatusNoContent)
			res.Send(nil)
		}
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a != "*" && strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

package policy

import (
	"sort"
	"strconv"
	"strings"

	"gatekit/pkg/web"
)

// SecurityHeadersConfig declares the static response headers. Zero values
// take the documented defaults; HSTS and the policy headers are only
// emitted when configured.
type SecurityHeadersConfig struct {
	HSTSSeconds           int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	// ContentSecurityPolicy is emitted verbatim when non-empty.
	ContentSecurityPolicy string

	// PermissionsPolicy maps a feature to its allowlist entries, e.g.
	// {"geolocation": {"self", `"https://maps.example.com"`}}. Entries
	// are validated at construction; see SecurityHeaders.
	PermissionsPolicy map[string][]string

	FrameOptions                 string // default SAMEORIGIN
	ContentTypeOptions           string // default nosniff
	ReferrerPolicy               string // default strict-origin-when-cross-origin
	PermittedCrossDomainPolicies string // default none
	CrossOriginOpenerPolicy      string // default same-origin
}

// SecurityHeaders precomputes the full header list at construction and
// re-emits it on every request; nothing is computed per request.
//
// Permissions-Policy values are validated up front: an unquoted closing
// parenthesis inside a feature's allowlist would terminate the `feature=(...)`
// group early and inject extra directives into the concatenated header, so
// such values fail with a ConfigError.
func SecurityHeaders(cfg SecurityHeadersConfig) (web.Middleware, error) {
	pairs := make([][2]string, 0, 8)

	if cfg.HSTSSeconds > 0 {
		v := "max-age=" + strconv.Itoa(cfg.HSTSSeconds)
		if cfg.HSTSIncludeSubdomains {
			v += "; includeSubDomains"
		}
		if cfg.HSTSPreload {
			v += "; preload"
		}
		pairs = append(pairs, [2]string{"Strict-Transport-Security", v})
	}

	if cfg.ContentSecurityPolicy != "" {
		pairs = append(pairs, [2]string{"Content-Security-Policy", cfg.ContentSecurityPolicy})
	}

	if len(cfg.PermissionsPolicy) > 0 {
		v, err := buildPermissionsPolicy(cfg.PermissionsPolicy)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]string{"Permissions-Policy", v})
	}

	pairs = append(pairs,
		[2]string{"X-Frame-Options", defaulted(cfg.FrameOptions, "SAMEORIGIN")},
		[2]string{"X-Content-Type-Options", defaulted(cfg.ContentTypeOptions, "nosniff")},
		[2]string{"Referrer-Policy", defaulted(cfg.ReferrerPolicy, "strict-origin-when-cross-origin")},
		[2]string{"X-Permitted-Cross-Domain-Policies", defaulted(cfg.PermittedCrossDomainPolicies, "none")},
		[2]string{"Cross-Origin-Opener-Policy", defaulted(cfg.CrossOriginOpenerPolicy, "same-origin")},
	)

	return func(req *web.Request, res *web.Response) {
		for _, p := range pairs {
			res.Header(p[0], p[1])
		}
	}, nil
}

func defaulted(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// buildPermissionsPolicy renders `feature=(entry entry ...)` groups joined
// by commas, sorted for a deterministic header.
func buildPermissionsPolicy(features map[string][]string) (string, error) {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		if strings.ContainsAny(name, "()=, ") {
			return "", configErrorf("permissions-policy: invalid feature name %q", name)
		}
		entries := features[name]
		for _, e := range entries {
			if err := validatePolicyEntry(name, e); err != nil {
				return "", err
			}
		}
		parts = append(parts, name+"=("+strings.Join(entries, " ")+")")
	}
	return strings.Join(parts, ", "), nil
}

// validatePolicyEntry accepts keyword tokens (self, *) and double-quoted
// origins. A parenthesis or comma in an unquoted entry could break out of
// the enclosing group.
func validatePolicyEntry(feature, entry string) error {
	if entry == "" {
		return configErrorf("permissions-policy: empty entry for feature %q", feature)
	}
	if len(entry) >= 2 && entry[0] == '"' && entry[len(entry)-1] == '"' {
		if strings.ContainsAny(entry[1:len(entry)-1], `"()`) {
			return configErrorf("permissions-policy: invalid quoted entry %q for feature %q", entry, feature)
		}
		return nil
	}
	if strings.ContainsAny(entry, `"(), `) {
		return configErrorf("permissions-policy: unquoted entry %q for feature %q could inject directives", entry, feature)
	}
	return nil
}

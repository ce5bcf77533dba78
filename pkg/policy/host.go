// Package policy contains the per-request security filters: CORS, CSRF,
// security headers, trusted hosts and HTTPS redirects. Each middleware is a
// pure function of (request, response, static config) that may end the
// response to short-circuit the chain.
package policy

import (
	"fmt"
	"strings"
)

// ConfigError reports an invalid policy construction. It is fatal at
// startup and never degraded into a runtime default.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// hostBreakChars are characters that would alter URL structure if a Host
// value containing them were embedded in a redirect or comparison.
const hostBreakChars = "/?#\\@"

// malformedHost reports whether a Host value must be rejected before any
// pattern matching.
func malformedHost(host string) bool {
	return host == "" || strings.ContainsAny(host, hostBreakChars)
}

// splitHostValue separates a Host value or pattern into lowercase name and
// optional port. Bracketed IPv6 literals keep their brackets in the name.
func splitHostValue(h string) (name, port string) {
	h = strings.ToLower(strings.TrimSpace(h))
	if strings.HasPrefix(h, "[") {
		end := strings.IndexByte(h, ']')
		if end == -1 {
			return h, ""
		}
		name = h[:end+1]
		rest := h[end+1:]
		if strings.HasPrefix(rest, ":") {
			port = rest[1:]
		}
		return name, port
	}
	if i := strings.LastIndexByte(h, ':'); i != -1 && !strings.Contains(h[:i], ":") {
		return h[:i], h[i+1:]
	}
	return h, ""
}

// hostAllowed matches a Host value against allowlist patterns. Patterns
// support exact names, "*.suffix" wildcards (which also match the bare
// suffix), bracketed IPv6 literals and optional port pinning: a pattern
// without a port accepts any port, a pattern with one requires that exact
// port. Matching is case-insensitive. Callers reject malformed hosts first.
func hostAllowed(patterns []string, host string) bool {
	hostName, hostPort := splitHostValue(host)
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p == "*" {
			return true
		}
		patName, patPort := splitHostValue(p)
		if patPort != "" && patPort != hostPort {
			continue
		}
		if strings.HasPrefix(patName, "*.") {
			suffix := patName[2:]
			if hostName == suffix || strings.HasSuffix(hostName, "."+suffix) {
				return true
			}
			continue
		}
		if patName == hostName {
			return true
		}
	}
	return false
}

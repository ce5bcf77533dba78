package logger

import "strings"

var sensitive = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"x-api-key":     {},
	"x-csrf-token":  {},
}

func redactHeaderValue(k, v string) string {
	if v == "" {
		return ""
	}
	if _, ok := sensitive[strings.ToLower(k)]; ok {
		return "<redacted>"
	}
	return v
}

// SafeHeaders returns a compact string representation of a header map
// suitable for logging, with sensitive values redacted.
func SafeHeaders(h map[string]string) string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, k+"="+redactHeaderValue(k, v))
	}
	return strings.Join(parts, "; ")
}

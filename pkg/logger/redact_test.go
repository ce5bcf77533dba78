package logger

import (
	"strings"
	"testing"
)

func TestSafeHeadersRedactsSensitive(t *testing.T) {
	out := SafeHeaders(map[string]string{
		"Authorization": "Bearer abc",
		"cookie":        "csrf_token=xyz",
		"Accept":        "application/json",
	})
	if strings.Contains(out, "abc") || strings.Contains(out, "xyz") {
		t.Fatalf("sensitive value leaked: %s", out)
	}
	if !strings.Contains(out, "Accept=application/json") {
		t.Fatalf("benign header missing: %s", out)
	}
	if !strings.Contains(out, "<redacted>") {
		t.Fatalf("redaction marker missing: %s", out)
	}
}

func TestRedactHeaderValueEmpty(t *testing.T) {
	if got := redactHeaderValue("Authorization", ""); got != "" {
		t.Fatalf("empty value should stay empty, got %q", got)
	}
}

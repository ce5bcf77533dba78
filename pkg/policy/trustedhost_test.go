package policy

import (
	"testing"

	"gatekit/pkg/web"
	"gatekit/pkg/web/webtest"
)

func TestHostAllowedPatterns(t *testing.T) {
	cases := []struct {
		patterns []string
		host     string
		want     bool
	}{
		{[]string{"example.com"}, "example.com", true},
		{[]string{"example.com"}, "EXAMPLE.COM", true},
		{[]string{"example.com"}, "example.com:8080", true},
		{[]string{"example.com:443"}, "example.com:443", true},
		{[]string{"example.com:443"}, "example.com:8080", false},
		{[]string{"example.com:443"}, "example.com", false},
		{[]string{"*.example.com"}, "api.example.com", true},
		{[]string{"*.example.com"}, "a.b.example.com", true},
		{[]string{"*.example.com"}, "example.com", true},
		{[]string{"*.example.com"}, "example.com.evil.com", false},
		{[]string{"*.example.com"}, "notexample.com", false},
		{[]string{"*"}, "anything.at.all", true},
		{[]string{"[::1]"}, "[::1]", true},
		{[]string{"[::1]"}, "[::1]:8080", true},
		{[]string{"[::1]:443"}, "[::1]:8080", false},
		{nil, "example.com", false},
	}
	for _, c := range cases {
		if got := hostAllowed(c.patterns, c.host); got != c.want {
			t.Fatalf("hostAllowed(%v, %q) = %v, want %v", c.patterns, c.host, got, c.want)
		}
	}
}

func TestMalformedHost(t *testing.T) {
	for _, h := range []string{"", "exa/mple.com", "a?b", "a#b", "a\\b", "user@host"} {
		if !malformedHost(h) {
			t.Fatalf("expected %q to be malformed", h)
		}
	}
	if malformedHost("example.com:443") {
		t.Fatalf("valid host flagged malformed")
	}
}

func TestTrustedHostRejectsUntrusted(t *testing.T) {
	mw := TrustedHost([]string{"*.example.com"})
	native := webtest.NewRequest("GET", "/").SetHeader("Host", "evil.com")
	res, _ := runPolicy(t, mw, native)

	if !res.Ended() {
		t.Fatalf("untrusted host must be rejected")
	}
	if res.StatusCode() != 400 {
		t.Fatalf("status = %d, want 400", res.StatusCode())
	}
}

func TestTrustedHostRejectsMalformed(t *testing.T) {
	mw := TrustedHost([]string{"*"})
	native := webtest.NewRequest("GET", "/").SetHeader("Host", "example.com/path")
	res, _ := runPolicy(t, mw, native)

	if !res.Ended() {
		t.Fatalf("malformed host must be rejected even under wildcard")
	}
	if res.StatusCode() != 400 {
		t.Fatalf("status = %d, want 400", res.StatusCode())
	}
}

func TestTrustedHostPassesAllowed(t *testing.T) {
	mw := TrustedHost([]string{"*.example.com"})
	native := webtest.NewRequest("GET", "/").SetHeader("Host", "api.example.com")
	res, _ := runPolicy(t, mw, native)

	if res.Ended() {
		t.Fatalf("allowed host should pass through")
	}
}

func TestTrustedHostUsesResolvedHost(t *testing.T) {
	mw := TrustedHost([]string{"internal.example.com"})
	native := webtest.NewRequest("GET", "/").SetHeader("Host", "evil.com")
	rec := webtest.NewResponse()
	req := web.NewRequest(native, rec, nil, 0)
	req.SetHost("internal.example.com")
	res := web.NewResponse(rec)
	mw(req, res)

	if res.Ended() {
		t.Fatalf("resolved host should win over the raw header")
	}
}

package policy

import (
	"testing"

	"gatekit/pkg/web"
	"gatekit/pkg/web/webtest"
)

func TestHTTPSRedirectBuildsTarget(t *testing.T) {
	mw := HTTPSRedirect(HTTPSRedirectConfig{})
	native := webtest.NewRequest("GET", "/path/to/it")
	native.RawQuery = "a=1&b=2"
	native.SetHeader("Host", "example.com")
	res, _ := runPolicy(t, mw, native)

	if !res.Ended() {
		t.Fatalf("plain-http request must redirect")
	}
	if res.StatusCode() != 301 {
		t.Fatalf("status = %d, want 301", res.StatusCode())
	}
	if got := res.GetHeader("Location"); got != "https://example.com/path/to/it?a=1&b=2" {
		t.Fatalf("location = %q", got)
	}
}

func TestHTTPSRedirectTemporaryCode(t *testing.T) {
	mw := HTTPSRedirect(HTTPSRedirectConfig{RedirectStatusCode: 302})
	native := webtest.NewRequest("GET", "/").SetHeader("Host", "example.com")
	res, _ := runPolicy(t, mw, native)

	if res.StatusCode() != 302 {
		t.Fatalf("status = %d, want 302", res.StatusCode())
	}
}

func TestHTTPSRedirectInvalidCodeFallsBack(t *testing.T) {
	mw := HTTPSRedirect(HTTPSRedirectConfig{RedirectStatusCode: 307})
	native := webtest.NewRequest("GET", "/").SetHeader("Host", "example.com")
	res, _ := runPolicy(t, mw, native)

	if res.StatusCode() != 301 {
		t.Fatalf("status = %d, want 301", res.StatusCode())
	}
}

func TestHTTPSRedirectSkipsHTTPS(t *testing.T) {
	mw := HTTPSRedirect(HTTPSRedirectConfig{})
	native := webtest.NewRequest("GET", "/").SetHeader("Host", "example.com")
	rec := webtest.NewResponse()
	req := web.NewRequest(native, rec, nil, 0)
	req.SetScheme("https")
	res := web.NewResponse(rec)
	mw(req, res)

	if res.Ended() {
		t.Fatalf("https request must pass through")
	}
}

func TestHTTPSRedirectMissingHost(t *testing.T) {
	mw := HTTPSRedirect(HTTPSRedirectConfig{})
	res, _ := runPolicy(t, mw, webtest.NewRequest("GET", "/"))

	if res.StatusCode() != 400 {
		t.Fatalf("status = %d, want 400", res.StatusCode())
	}
}

func TestHTTPSRedirectRejectsHostNotInAllowlist(t *testing.T) {
	mw := HTTPSRedirect(HTTPSRedirectConfig{AllowedHosts: []string{"example.com"}})
	native := webtest.NewRequest("GET", "/").SetHeader("Host", "evil.com")
	res, _ := runPolicy(t, mw, native)

	if res.StatusCode() != 400 {
		t.Fatalf("status = %d, want 400", res.StatusCode())
	}
	if got := res.GetHeader("Location"); got != "" {
		t.Fatalf("rejected request must not carry Location, got %q", got)
	}
}

func TestHTTPSRedirectRejectsMalformedHost(t *testing.T) {
	mw := HTTPSRedirect(HTTPSRedirectConfig{})
	native := webtest.NewRequest("GET", "/").SetHeader("Host", "example.com\\@evil")
	res, _ := runPolicy(t, mw, native)

	if res.StatusCode() != 400 {
		t.Fatalf("status = %d, want 400", res.StatusCode())
	}
}

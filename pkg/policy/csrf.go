package policy

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"gatekit/pkg/logger"
	"gatekit/pkg/telemetry"
	"gatekit/pkg/web"
)

const (
	// DefaultCSRFCookieName is used when the cookie is not Secure; with
	// Secure the __Host- prefixed variant pins Path=/ and forbids Domain.
	DefaultCSRFCookieName       = "csrf_token"
	defaultSecureCSRFCookieName = "__Host-csrf_token"
	// DefaultCSRFHeaderName carries the masked token on unsafe requests.
	DefaultCSRFHeaderName = "X-CSRF-Token"

	csrfTokenLen = 32
)

// CSRFConfig tunes the double-submit-cookie protection.
type CSRFConfig struct {
	// Secret signs cookie tokens. Required; rotation invalidates all
	// outstanding tokens.
	Secret string
	// CookieName overrides the default cookie name.
	CookieName string
	// HeaderName overrides the default token header.
	HeaderName string
	// ExemptMethods pass without a token (default GET, HEAD, OPTIONS).
	ExemptMethods []string
	// Secure marks the cookie Secure and switches to the __Host- name.
	Secure bool
	// HTTPOnly defaults to true; the client learns the token from the
	// response header, not by reading the cookie.
	HTTPOnly *bool
	// SameSite defaults to "Lax".
	SameSite string
}

// CSRF builds the double-submit middleware.
//
// The cookie holds base64url(token)+"."+base64url(HMAC-SHA256(secret,
// token)); an unsigned or mis-signed cookie is treated exactly like a
// missing one. The header token is masked per response (random pad || pad
// XOR token) so the transmitted value differs every time even for one
// underlying token, which starves BREACH-style compression probes. On
// https, Origin (or Referer) must match the resolved Host before the token
// is even examined.
func CSRF(cfg CSRFConfig) (web.Middleware, error) {
	if cfg.Secret == "" {
		return nil, configErrorf("csrf: secret is required")
	}
	secret := []byte(cfg.Secret)

	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = DefaultCSRFCookieName
		if cfg.Secure {
			cookieName = defaultSecureCSRFCookieName
		}
	}
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = DefaultCSRFHeaderName
	}
	exempt := cfg.ExemptMethods
	if len(exempt) == 0 {
		exempt = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	}
	exemptSet := map[string]struct{}{}
	for _, m := range exempt {
		exemptSet[strings.ToUpper(m)] = struct{}{}
	}
	httpOnly := true
	if cfg.HTTPOnly != nil {
		httpOnly = *cfg.HTTPOnly
	}
	sameSite := cfg.SameSite
	if sameSite == "" {
		sameSite = "Lax"
	}

	setCookie := func(res *web.Response, token []byte) {
		res.SetCookie(web.Cookie{
			Name:     cookieName,
			Value:    signToken(secret, token),
			Path:     "/",
			Secure:   cfg.Secure,
			HTTPOnly: httpOnly,
			SameSite: sameSite,
		})
	}

	return func(req *web.Request, res *web.Response) {
		if _, ok := exemptSet[strings.ToUpper(req.Method())]; ok {
			// Safe methods issue (or refresh) the token so the client
			// can echo it on the next unsafe request.
			token := verifyToken(secret, readCookie(req.GetHeader("cookie"), cookieName))
			if token == nil {
				token = newToken()
				setCookie(res, token)
			}
			res.Header(headerName, maskToken(token))
			return
		}

		if req.Scheme() == "https" {
			host := req.Host()
			if host == "" {
				res.JSONError(http.StatusBadRequest, "Bad Request", "Missing Host header")
				telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonBadRequest).Inc()
				return
			}
			if !sourceMatchesHost(req, host) {
				res.JSONError(http.StatusForbidden, "Forbidden", "Origin does not match host")
				telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonCSRF).Inc()
				logger.Warn("csrf_origin_mismatch", "host", host, "remote", req.RemoteAddr())
				return
			}
		}

		cookieToken := verifyToken(secret, readCookie(req.GetHeader("cookie"), cookieName))
		if cookieToken == nil {
			// Missing, unsigned and tampered all land here identically.
			res.JSONError(http.StatusForbidden, "Forbidden", "CSRF token missing")
			telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonCSRF).Inc()
			logger.Warn("csrf_cookie_missing", "remote", req.RemoteAddr(), "path", req.URL())
			return
		}

		sent := unmaskToken(req.GetHeader(headerName))
		if sent == nil || subtle.ConstantTimeCompare(sent, cookieToken) != 1 {
			res.JSONError(http.StatusForbidden, "Forbidden", "CSRF token invalid")
			telemetry.RejectedTotal.WithLabelValues(telemetry.ReasonCSRF).Inc()
			logger.Warn("csrf_token_invalid", "remote", req.RemoteAddr(), "path", req.URL())
			return
		}
	}, nil
}

// sourceMatchesHost checks Origin, falling back to Referer, against the
// resolved host. Absent both headers the token check still stands alone.
func sourceMatchesHost(req *web.Request, host string) bool {
	source := req.GetHeader("origin")
	if source == "" {
		source = req.GetHeader("referer")
	}
	if source == "" {
		return true
	}
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host) || strings.EqualFold(u.Hostname(), hostOnly(host))
}

func hostOnly(host string) string {
	name, _ := splitHostValue(host)
	return name
}

func newToken() []byte {
	token := make([]byte, csrfTokenLen)
	if _, err := rand.Read(token); err != nil {
		// crypto/rand failure is unrecoverable for token issuance
		panic("csrf: rand.Read failed: " + err.Error())
	}
	return token
}

// signToken produces base64url(token) + "." + base64url(mac).
func signToken(secret, token []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(token)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(token) + "." + enc.EncodeToString(mac.Sum(nil))
}

// verifyToken returns the raw token when the signature verifies, nil for
// anything else. Verification is constant-time.
func verifyToken(secret []byte, signed string) []byte {
	if signed == "" {
		return nil
	}
	dot := strings.IndexByte(signed, '.')
	if dot < 0 {
		return nil
	}
	enc := base64.RawURLEncoding
	token, err := enc.DecodeString(signed[:dot])
	if err != nil || len(token) == 0 {
		return nil
	}
	sig, err := enc.DecodeString(signed[dot+1:])
	if err != nil {
		return nil
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(token)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil
	}
	return token
}

// maskToken XORs the token with a fresh random pad and transmits both, so
// the on-the-wire value never repeats.
func maskToken(token []byte) string {
	pad := make([]byte, len(token))
	if _, err := rand.Read(pad); err != nil {
		panic("csrf: rand.Read failed: " + err.Error())
	}
	out := make([]byte, 2*len(token))
	copy(out, pad)
	for i, b := range token {
		out[len(token)+i] = b ^ pad[i]
	}
	return base64.RawURLEncoding.EncodeToString(out)
}

// unmaskToken reverses maskToken; malformed input yields nil.
func unmaskToken(masked string) []byte {
	raw, err := base64.RawURLEncoding.DecodeString(masked)
	if err != nil || len(raw) == 0 || len(raw)%2 != 0 {
		return nil
	}
	half := len(raw) / 2
	token := make([]byte, half)
	for i := 0; i < half; i++ {
		token[i] = raw[i] ^ raw[half+i]
	}
	return token
}

// readCookie extracts one cookie value from a raw Cookie header.
func readCookie(header, name string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if eq := strings.IndexByte(part, '='); eq > 0 && part[:eq] == name {
			return part[eq+1:]
		}
	}
	return ""
}

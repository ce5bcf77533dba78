package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"gatekit/pkg/engine"
)

type headerPair struct {
	key   string
	value string
}

// Response buffers a status code and an ordered, multi-valued header list
// until the first send. Once ended, every mutation and send is a no-op.
type Response struct {
	native  engine.NativeResponse
	status  int
	headers []headerPair
	ended   bool
}

// NewResponse wraps a native response. Status defaults to 200.
func NewResponse(n engine.NativeResponse) *Response {
	return &Response{native: n, status: http.StatusOK}
}

// Status sets the response status code.
func (r *Response) Status(code int) *Response {
	if r.ended {
		return r
	}
	r.status = code
	return r
}

// StatusCode returns the status that was, or will be, written.
func (r *Response) StatusCode() int { return r.status }

// Header sets a header, replacing any values previously set for the same
// name. Use AddHeader for headers that legitimately repeat.
func (r *Response) Header(key, value string) *Response {
	if r.ended {
		return r
	}
	kept := r.headers[:0]
	for _, p := range r.headers {
		if !strings.EqualFold(p.key, key) {
			kept = append(kept, p)
		}
	}
	r.headers = append(kept, headerPair{key, value})
	return r
}

// AddHeader appends a header value without touching existing ones. Distinct
// Set-Cookie values must never overwrite each other, so cookies go through
// this path.
func (r *Response) AddHeader(key, value string) *Response {
	if r.ended {
		return r
	}
	r.headers = append(r.headers, headerPair{key, value})
	return r
}

// GetHeader returns the first buffered value for the named header, or "".
func (r *Response) GetHeader(key string) string {
	for _, p := range r.headers {
		if strings.EqualFold(p.key, key) {
			return p.value
		}
	}
	return ""
}

// HeaderValues returns every buffered value for the named header.
func (r *Response) HeaderValues(key string) []string {
	var out []string
	for _, p := range r.headers {
		if strings.EqualFold(p.key, key) {
			out = append(out, p.value)
		}
	}
	return out
}

// Ended reports whether the response has been sent; the middleware chain
// stops as soon as this turns true.
func (r *Response) Ended() bool { return r.ended }

// Send writes status, buffered headers and the body, ending the response.
func (r *Response) Send(body []byte) {
	if r.ended {
		return
	}
	r.ended = true
	r.native.WriteStatus(r.status)
	for _, p := range r.headers {
		r.native.WriteHeader(p.key, p.value)
	}
	r.native.End(body)
}

// Text sends a plain-text body.
func (r *Response) Text(body string) {
	r.Header("Content-Type", "text/plain; charset=utf-8")
	r.Send([]byte(body))
}

// HTML sends an HTML body.
func (r *Response) HTML(body string) {
	r.Header("Content-Type", "text/html; charset=utf-8")
	r.Send([]byte(body))
}

// JSON marshals v and sends it as application/json.
func (r *Response) JSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		r.Status(http.StatusInternalServerError)
		r.Header("Content-Type", "application/json")
		r.Send([]byte(`{"error":"Internal Server Error"}`))
		return
	}
	r.Header("Content-Type", "application/json")
	r.Send(b)
}

// JSONError sends the minimal error body used by every rejection path. No
// internal state ever reaches the client through this.
func (r *Response) JSONError(status int, errName, message string) {
	r.Status(status)
	r.JSON(map[string]string{"error": errName, "message": message})
}

// Redirect sends a redirect to url with the given 3xx code.
func (r *Response) Redirect(url string, code int) {
	r.Status(code)
	r.Header("Location", url)
	r.Send(nil)
}

// Cookie describes a Set-Cookie value. Serialization delegates to net/http
// so the wire syntax stays standard.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HTTPOnly bool
	SameSite string // "Lax", "Strict", "None" or ""
}

// SetCookie appends a Set-Cookie header for c.
func (r *Response) SetCookie(c Cookie) *Response {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   c.MaxAge,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	switch strings.ToLower(c.SameSite) {
	case "lax":
		hc.SameSite = http.SameSiteLaxMode
	case "strict":
		hc.SameSite = http.SameSiteStrictMode
	case "none":
		hc.SameSite = http.SameSiteNoneMode
	}
	if v := hc.String(); v != "" {
		r.AddHeader("Set-Cookie", v)
	}
	return r
}

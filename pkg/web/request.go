package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"gatekit/pkg/engine"
)

// ErrTooManyFields is returned when a query string or form body carries more
// fields than the configured ceiling.
var ErrTooManyFields = errors.New("too many fields")

// DefaultMaxFields caps parsed query and form fields per request.
const DefaultMaxFields = 1000

// Request wraps a native request with lazy, idempotent caches. Every cache
// is a pure function of the underlying handle; caches exist for performance,
// not correctness. The resolved client identity (address, scheme, host,
// port) is written once by the proxy trust middleware and read everywhere
// else; downstream code never re-parses forwarded headers.
type Request struct {
	native engine.NativeRequest
	res    engine.NativeResponse
	params map[string]string

	maxBodySize int64
	maxFields   int

	urlCache     *string
	queryCache   *string
	queryParams  url.Values
	headersCache map[string]string

	remoteAddr string
	scheme     string
	host       *string
	port       int

	body     *bodyReader
	bodyData []byte
	bodyErr  error
	bodyDone bool
}

// NewRequest builds a Request for one inbound delivery. params maps route
// parameter names to values, as supplied by the router.
func NewRequest(native engine.NativeRequest, res engine.NativeResponse, params map[string]string, maxBodySize int64) *Request {
	if params == nil {
		params = map[string]string{}
	}
	return &Request{
		native:      native,
		res:         res,
		params:      params,
		maxBodySize: maxBodySize,
		maxFields:   DefaultMaxFields,
		scheme:      "http",
	}
}

// Method returns the HTTP method.
func (r *Request) Method() string { return r.native.Method() }

// URL returns the request path (cached).
func (r *Request) URL() string {
	if r.urlCache == nil {
		u := r.native.URL()
		r.urlCache = &u
	}
	return *r.urlCache
}

// Query returns the raw query string without the leading '?' (cached).
func (r *Request) Query() string {
	if r.queryCache == nil {
		q := r.native.QueryString()
		r.queryCache = &q
	}
	return *r.queryCache
}

// QueryParams parses and caches the query string. Parsing stops with
// ErrTooManyFields when the field ceiling is hit; the partial map is not
// retained.
func (r *Request) QueryParams() (url.Values, error) {
	if r.queryParams != nil {
		return r.queryParams, nil
	}
	vals, err := parseFields(r.Query(), r.maxFields)
	if err != nil {
		return nil, err
	}
	r.queryParams = vals
	return vals, nil
}

// Headers returns all headers as a lowercase-keyed map (cached).
func (r *Request) Headers() map[string]string {
	if r.headersCache == nil {
		h := map[string]string{}
		r.native.EachHeader(func(k, v string) {
			lk := strings.ToLower(k)
			if prev, ok := h[lk]; ok {
				// repeated headers join per RFC 7230
				h[lk] = prev + ", " + v
			} else {
				h[lk] = v
			}
		})
		r.headersCache = h
	}
	return r.headersCache
}

// GetHeader returns a header value by case-insensitive name, or "".
func (r *Request) GetHeader(name string) string {
	return r.Headers()[strings.ToLower(name)]
}

// Param returns a route parameter by name, or "".
func (r *Request) Param(name string) string { return r.params[name] }

// RemoteAddr returns the resolved client address. Before the trust
// middleware runs this is the literal peer address from the transport.
func (r *Request) RemoteAddr() string {
	if r.remoteAddr == "" {
		r.remoteAddr = string(r.native.PeerAddrBytes())
	}
	return r.remoteAddr
}

// SetRemoteAddr overwrites the cached client address. Only the proxy trust
// resolver calls this.
func (r *Request) SetRemoteAddr(addr string) { r.remoteAddr = addr }

// Scheme returns the resolved request scheme ("http" or "https").
func (r *Request) Scheme() string { return r.scheme }

// SetScheme overwrites the resolved scheme. Only the proxy trust resolver
// and server bootstrap call this.
func (r *Request) SetScheme(s string) { r.scheme = strings.ToLower(s) }

// Host returns the resolved host: the forwarded host when the trust
// resolver accepted one, otherwise the Host header.
func (r *Request) Host() string {
	if r.host != nil {
		return *r.host
	}
	return r.GetHeader("host")
}

// SetHost overwrites the resolved host. Only the proxy trust resolver calls
// this.
func (r *Request) SetHost(h string) { r.host = &h }

// Port returns the resolved forwarded port, or 0 when unknown.
func (r *Request) Port() int { return r.port }

// SetPort overwrites the resolved port.
func (r *Request) SetPort(p int) { r.port = p }

// ContentType returns the Content-Type header, or "".
func (r *Request) ContentType() string { return r.GetHeader("content-type") }

// ContentLength returns the Content-Length header as an int, or -1.
func (r *Request) ContentLength() int64 {
	v := r.GetHeader("content-length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// IsJSON reports whether the request declares a JSON body.
func (r *Request) IsJSON() bool {
	return strings.Contains(strings.ToLower(r.ContentType()), "application/json")
}

// IsForm reports whether the request declares a urlencoded form body.
func (r *Request) IsForm() bool {
	return strings.Contains(strings.ToLower(r.ContentType()), "application/x-www-form-urlencoded")
}

// Body reads the request body up to the configured ceiling. The first call
// consumes the native stream; the result (success or failure) is cached and
// returned unchanged to every subsequent call. Cancellation of ctx does not
// poison the cache: a later call can still collect the outcome.
func (r *Request) Body(ctx context.Context) ([]byte, error) {
	if r.bodyDone {
		return r.bodyData, r.bodyErr
	}
	if r.body == nil {
		r.body = newBodyReader(r.res, r.maxBodySize)
	}
	data, err := r.body.Await(ctx)
	if err != nil && errors.Is(err, ctx.Err()) {
		return nil, err
	}
	r.bodyData, r.bodyErr, r.bodyDone = data, err, true
	return r.bodyData, r.bodyErr
}

// Text reads the body as a UTF-8 string.
func (r *Request) Text(ctx context.Context) (string, error) {
	b, err := r.Body(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// JSON reads the body and unmarshals it into v.
func (r *Request) JSON(ctx context.Context, v any) error {
	b, err := r.Body(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Form reads and parses a urlencoded body, subject to the field ceiling.
func (r *Request) Form(ctx context.Context) (url.Values, error) {
	b, err := r.Body(ctx)
	if err != nil {
		return nil, err
	}
	return parseFields(string(b), r.maxFields)
}

// parseFields is url.ParseQuery with a field-count ceiling; oversized
// attacker-controlled input fails instead of being processed.
func parseFields(q string, max int) (url.Values, error) {
	if q == "" {
		return url.Values{}, nil
	}
	if max > 0 && strings.Count(q, "&")+1 > max {
		return nil, ErrTooManyFields
	}
	vals, err := url.ParseQuery(q)
	if err != nil {
		return nil, err
	}
	return vals, nil
}

// Package engine defines the boundary between the framework core and the
// transport that owns socket I/O and HTTP parsing. The core never touches a
// connection directly; it consumes the narrow NativeRequest/NativeResponse
// surface and any transport implementing it is substitutable.
package engine

import "context"

// NativeRequest is the read-only view of a parsed inbound request. Values
// are only valid for the lifetime of the request delivery.
type NativeRequest interface {
	// Method returns the HTTP method (GET, POST, ...).
	Method() string
	// URL returns the request path without the query string.
	URL() string
	// QueryString returns the raw query string without the leading '?'.
	QueryString() string
	// Header returns the first value of the named header, or "".
	// Lookup is case-insensitive.
	Header(name string) string
	// EachHeader visits every header pair once.
	EachHeader(fn func(key, value string))
	// Parameter returns the route parameter at the given index, or "".
	Parameter(index int) string
	// PeerAddrBytes returns the literal peer IP as text bytes, without a
	// port. This comes from the transport and is never attacker-controlled.
	PeerAddrBytes() []byte
}

// NativeResponse is the write side of a request plus the body-delivery
// hooks. OnData may invoke its callback synchronously during registration
// (transports that buffer the whole body) or later from another goroutine
// (streaming transports); consumers must tolerate both.
type NativeResponse interface {
	WriteStatus(code int)
	WriteHeader(name, value string)
	// End writes any pending status/headers and the body, completing the
	// response. Calls after the first End are ignored by the transport.
	End(body []byte)
	// Close aborts the underlying connection without a well-formed
	// response. Used when reading must stop mid-stream.
	Close()
	// OnData registers the body chunk callback. The stream is consumed
	// once; a second registration is undefined.
	OnData(fn func(chunk []byte, last bool))
	// OnAborted registers a callback fired if the peer goes away before
	// the response ends.
	OnAborted(fn func())
}

// HandlerFunc is the transport-facing handler signature. The response comes
// first, matching the callback order of push-style native engines.
type HandlerFunc func(res NativeResponse, req NativeRequest)

// Engine is a routable transport. Patterns use {name} segments for route
// parameters; parameter indexes follow pattern order.
type Engine interface {
	Handle(method, pattern string, h HandlerFunc)
	NotFound(h HandlerFunc)
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

// ParamNames extracts the ordered {name} parameters from a route pattern.
func ParamNames(pattern string) []string {
	var names []string
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '{' {
			continue
		}
		j := i + 1
		for j < len(pattern) && pattern[j] != '}' {
			j++
		}
		if j < len(pattern) {
			names = append(names, pattern[i+1:j])
			i = j
		}
	}
	return names
}

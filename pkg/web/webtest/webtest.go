// Package webtest provides in-memory NativeRequest/NativeResponse fakes
// for exercising middleware and handlers without a socket.
package webtest

import (
	"strings"
	"sync"
)

// Request is a scriptable engine.NativeRequest.
type Request struct {
	ReqMethod string
	Path      string
	RawQuery  string
	Peer      string
	Params    []string

	headers [][2]string
}

// NewRequest returns a request with the given method and path and a
// default peer of 10.0.0.1.
func NewRequest(method, path string) *Request {
	return &Request{ReqMethod: method, Path: path, Peer: "10.0.0.1"}
}

// SetHeader appends a header pair. Repeated names yield repeated pairs,
// matching how transports surface duplicate headers.
func (r *Request) SetHeader(name, value string) *Request {
	r.headers = append(r.headers, [2]string{name, value})
	return r
}

func (r *Request) Method() string      { return r.ReqMethod }
func (r *Request) URL() string         { return r.Path }
func (r *Request) QueryString() string { return r.RawQuery }

func (r *Request) Header(name string) string {
	for _, h := range r.headers {
		if strings.EqualFold(h[0], name) {
			return h[1]
		}
	}
	return ""
}

func (r *Request) EachHeader(fn func(key, value string)) {
	for _, h := range r.headers {
		fn(h[0], h[1])
	}
}

func (r *Request) Parameter(index int) string {
	if index < 0 || index >= len(r.Params) {
		return ""
	}
	return r.Params[index]
}

func (r *Request) PeerAddrBytes() []byte { return []byte(r.Peer) }

// Response is a recording engine.NativeResponse. Body chunks queued with
// QueueBody before the handler runs are delivered synchronously when the
// handler registers OnData; chunks pushed afterwards with PushBody model
// asynchronous delivery.
type Response struct {
	mu sync.Mutex

	StatusCode int
	Headers    [][2]string
	Body       []byte
	EndCalls   int
	CloseCalls int

	queued  []bodyChunk
	onData  func(chunk []byte, last bool)
	aborted func()
}

type bodyChunk struct {
	data []byte
	last bool
}

// NewResponse returns an empty recording response.
func NewResponse() *Response {
	return &Response{}
}

// QueueBody schedules a chunk for synchronous delivery at OnData
// registration time.
func (p *Response) QueueBody(data []byte, last bool) *Response {
	p.queued = append(p.queued, bodyChunk{data: data, last: last})
	return p
}

// PushBody delivers a chunk to a previously registered OnData callback.
func (p *Response) PushBody(data []byte, last bool) {
	p.mu.Lock()
	fn := p.onData
	p.mu.Unlock()
	if fn != nil {
		fn(data, last)
	}
}

// Abort fires the registered abort callback.
func (p *Response) Abort() {
	p.mu.Lock()
	fn := p.aborted
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *Response) WriteStatus(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StatusCode = code
}

func (p *Response) WriteHeader(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Headers = append(p.Headers, [2]string{name, value})
}

func (p *Response) End(body []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.EndCalls == 0 {
		p.Body = append([]byte(nil), body...)
	}
	p.EndCalls++
}

func (p *Response) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCalls++
}

func (p *Response) OnData(fn func(chunk []byte, last bool)) {
	p.mu.Lock()
	p.onData = fn
	queued := p.queued
	p.queued = nil
	p.mu.Unlock()
	for _, c := range queued {
		fn(c.data, c.last)
	}
}

func (p *Response) OnAborted(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aborted = fn
}

// HeaderValue returns the first recorded value for name, matched
// case-insensitively.
func (p *Response) HeaderValue(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.Headers {
		if strings.EqualFold(h[0], name) {
			return h[1]
		}
	}
	return ""
}

// HeaderValues returns all recorded values for name.
func (p *Response) HeaderValues(name string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, h := range p.Headers {
		if strings.EqualFold(h[0], name) {
			out = append(out, h[1])
		}
	}
	return out
}

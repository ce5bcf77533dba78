package engine

import (
	"context"
	"net"
	"strings"
	"sync/atomic"

	"github.com/valyala/fasthttp"
)

// FastHTTP is an Engine backed by valyala/fasthttp. fasthttp buffers the
// whole request body before the handler runs, so OnData delivers a single
// synchronous chunk; the core must not assume asynchronous delivery.
type FastHTTP struct {
	routes   []fastRoute
	raw      map[string]fasthttp.RequestHandler
	wrap     func(fasthttp.RequestHandler) fasthttp.RequestHandler
	notFound HandlerFunc
	srv      *fasthttp.Server
}

type fastRoute struct {
	method   string
	segments []string
	params   []string
	handler  HandlerFunc
}

// NewFastHTTP returns a FastHTTP engine with an empty route table.
func NewFastHTTP() *FastHTTP {
	return &FastHTTP{}
}

func (e *FastHTTP) Handle(method, pattern string, h HandlerFunc) {
	e.routes = append(e.routes, fastRoute{
		method:   method,
		segments: splitPath(pattern),
		params:   ParamNames(pattern),
		handler:  h,
	})
}

func (e *FastHTTP) NotFound(h HandlerFunc) { e.notFound = h }

// RawHandle registers a raw fasthttp handler for an exact path, bypassing
// the routed dispatch. Used for net/http interop endpoints like /metrics.
func (e *FastHTTP) RawHandle(path string, h fasthttp.RequestHandler) {
	if e.raw == nil {
		e.raw = make(map[string]fasthttp.RequestHandler)
	}
	e.raw[path] = h
}

// WrapHandler installs an outermost fasthttp wrapper (compression,
// instrumentation) applied around the whole dispatcher.
func (e *FastHTTP) WrapHandler(wrap func(fasthttp.RequestHandler) fasthttp.RequestHandler) {
	e.wrap = wrap
}

// Handler returns the dispatcher with any installed wrapper applied.
func (e *FastHTTP) Handler() fasthttp.RequestHandler {
	if e.wrap != nil {
		return e.wrap(e.dispatch)
	}
	return e.dispatch
}

func (e *FastHTTP) ListenAndServe(addr string) error {
	e.srv = &fasthttp.Server{Handler: e.Handler()}
	return e.srv.ListenAndServe(addr)
}

func (e *FastHTTP) Shutdown(ctx context.Context) error {
	if e.srv == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- e.srv.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *FastHTTP) dispatch(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := string(ctx.Path())
	if h, ok := e.raw[path]; ok {
		h(ctx)
		return
	}
	segs := splitPath(path)

	for i := range e.routes {
		rt := &e.routes[i]
		if rt.method != method {
			continue
		}
		vals, ok := matchSegments(rt.segments, segs)
		if !ok {
			continue
		}
		req := &fastRequest{ctx: ctx, values: vals}
		res := &fastResponse{ctx: ctx}
		rt.handler(res, req)
		res.finish()
		return
	}
	if e.notFound != nil {
		req := &fastRequest{ctx: ctx}
		res := &fastResponse{ctx: ctx}
		e.notFound(res, req)
		res.finish()
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNotFound)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// matchSegments matches concrete path segments against a pattern, returning
// parameter values in pattern order.
func matchSegments(pattern, path []string) ([]string, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}
	var vals []string
	for i, seg := range pattern {
		if len(seg) > 1 && seg[0] == '{' && seg[len(seg)-1] == '}' {
			vals = append(vals, path[i])
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}
	return vals, true
}

type fastRequest struct {
	ctx    *fasthttp.RequestCtx
	values []string
}

func (q *fastRequest) Method() string      { return string(q.ctx.Method()) }
func (q *fastRequest) URL() string         { return string(q.ctx.Path()) }
func (q *fastRequest) QueryString() string { return string(q.ctx.URI().QueryString()) }

func (q *fastRequest) Header(name string) string {
	return string(q.ctx.Request.Header.Peek(name))
}

func (q *fastRequest) EachHeader(fn func(key, value string)) {
	q.ctx.Request.Header.VisitAll(func(k, v []byte) {
		fn(string(k), string(v))
	})
}

func (q *fastRequest) Parameter(index int) string {
	if index < 0 || index >= len(q.values) {
		return ""
	}
	return q.values[index]
}

func (q *fastRequest) PeerAddrBytes() []byte {
	if addr, ok := q.ctx.RemoteAddr().(*net.TCPAddr); ok {
		return []byte(addr.IP.String())
	}
	return []byte(q.ctx.RemoteIP().String())
}

type fastResponse struct {
	ctx    *fasthttp.RequestCtx
	status int
	ended  atomic.Bool
	closed atomic.Bool
}

func (p *fastResponse) WriteStatus(code int) {
	if p.ended.Load() {
		return
	}
	p.status = code
}

func (p *fastResponse) WriteHeader(name, value string) {
	if p.ended.Load() {
		return
	}
	p.ctx.Response.Header.Add(name, value)
}

func (p *fastResponse) End(body []byte) {
	if p.ended.Swap(true) || p.closed.Load() {
		return
	}
	status := p.status
	if status == 0 {
		status = fasthttp.StatusOK
	}
	p.ctx.SetStatusCode(status)
	if len(body) > 0 {
		p.ctx.SetBody(body)
	}
}

func (p *fastResponse) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.ended.Store(true)
	p.ctx.Conn().Close()
}

func (p *fastResponse) OnData(fn func(chunk []byte, last bool)) {
	// fasthttp hands over a fully buffered body; deliver it inline.
	fn(p.ctx.PostBody(), true)
}

func (p *fastResponse) OnAborted(fn func()) {
	// Connection loss surfaces as a write error after the handler returns;
	// there is no pre-handler abort signal to hook in this transport.
}

func (p *fastResponse) finish() {
	if !p.ended.Load() {
		p.End(nil)
	}
}

package web

import (
	"context"
	"net/http"
	"time"

	"gatekit/pkg/engine"
	"gatekit/pkg/logger"
	"gatekit/pkg/telemetry"
)

// Middleware inspects or mutates the request/response pair. Ending the
// response short-circuits the chain.
type Middleware func(*Request, *Response)

// Handler is a terminal route handler.
type Handler func(*Request, *Response)

// Options tune per-request behavior.
type Options struct {
	// MaxBodySize caps buffered request bodies; 0 means DefaultMaxBodySize.
	MaxBodySize int64
	// LogRequests enables the slow/error request log line.
	LogRequests bool
}

// App composes an ordered middleware chain over routes registered on a
// transport engine.
type App struct {
	engine      engine.Engine
	middlewares []Middleware
	opts        Options
}

// NewApp builds an App on the given engine.
func NewApp(e engine.Engine, opts Options) *App {
	a := &App{engine: e, opts: opts}
	e.NotFound(func(res engine.NativeResponse, req engine.NativeRequest) {
		response := NewResponse(res)
		response.JSONError(http.StatusNotFound, "Not Found", "no route matches "+req.URL())
	})
	return a
}

// Use appends a middleware. Order of registration is order of execution.
func (a *App) Use(m Middleware) { a.middlewares = append(a.middlewares, m) }

func (a *App) Get(pattern string, h Handler)     { a.handle(http.MethodGet, pattern, h) }
func (a *App) Post(pattern string, h Handler)    { a.handle(http.MethodPost, pattern, h) }
func (a *App) Put(pattern string, h Handler)     { a.handle(http.MethodPut, pattern, h) }
func (a *App) Delete(pattern string, h Handler)  { a.handle(http.MethodDelete, pattern, h) }
func (a *App) Patch(pattern string, h Handler)   { a.handle(http.MethodPatch, pattern, h) }
func (a *App) Head(pattern string, h Handler)    { a.handle(http.MethodHead, pattern, h) }
func (a *App) Options(pattern string, h Handler) { a.handle(http.MethodOptions, pattern, h) }

func (a *App) handle(method, pattern string, h Handler) {
	names := engine.ParamNames(pattern)
	a.engine.Handle(method, pattern, func(res engine.NativeResponse, req engine.NativeRequest) {
		start := time.Now()
		params := map[string]string{}
		for i, name := range names {
			if v := req.Parameter(i); v != "" {
				params[name] = v
			}
		}
		request := NewRequest(req, res, params, a.opts.MaxBodySize)
		response := NewResponse(res)
		telemetry.RequestsTotal.WithLabelValues(request.Method()).Inc()

		// The chain runner checks Ended after every middleware and stops
		// immediately on short-circuit.
		for _, m := range a.middlewares {
			m(request, response)
			if response.Ended() {
				a.logRequest(request, response, start)
				return
			}
		}
		h(request, response)
		a.logRequest(request, response, start)
	})
}

// logRequest logs only error responses and slow requests, matching the
// framework's low-noise default.
func (a *App) logRequest(req *Request, res *Response, start time.Time) {
	if !a.opts.LogRequests {
		return
	}
	dur := time.Since(start)
	if res.StatusCode() < 400 && dur <= 100*time.Millisecond {
		return
	}
	logger.Info("request",
		"method", req.Method(),
		"path", req.URL(),
		"status", res.StatusCode(),
		"duration_ms", dur.Milliseconds(),
		"remote", req.RemoteAddr(),
		"headers", logger.SafeHeaders(req.Headers()),
	)
}

// Listen starts the engine on addr and blocks.
func (a *App) Listen(addr string) error { return a.engine.ListenAndServe(addr) }

// Shutdown gracefully stops the engine.
func (a *App) Shutdown(ctx context.Context) error { return a.engine.Shutdown(ctx) }

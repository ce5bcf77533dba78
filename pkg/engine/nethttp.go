package engine

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"
)

const readChunkSize = 8 * 1024

// NetHTTP is an Engine backed by net/http with gorilla/mux routing. Body
// chunks are pumped to the OnData callback from a separate goroutine, so it
// exercises the same cross-goroutine delivery model as a native push engine.
type NetHTTP struct {
	router *mux.Router
	wrap   func(http.Handler) http.Handler
	srv    *http.Server
}

// NewNetHTTP returns a NetHTTP engine with an empty route table.
func NewNetHTTP() *NetHTTP {
	return &NetHTTP{router: mux.NewRouter()}
}

func (e *NetHTTP) Handle(method, pattern string, h HandlerFunc) {
	names := ParamNames(pattern)
	e.router.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		serveNetHTTP(w, r, names, h)
	}).Methods(method)
}

func (e *NetHTTP) NotFound(h HandlerFunc) {
	e.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveNetHTTP(w, r, nil, h)
	})
}

// WrapHandler installs an outermost net/http wrapper (compression,
// instrumentation) applied around the whole router.
func (e *NetHTTP) WrapHandler(wrap func(http.Handler) http.Handler) {
	e.wrap = wrap
}

// Handler returns the root handler including any installed wrapper.
func (e *NetHTTP) Handler() http.Handler {
	if e.wrap != nil {
		return e.wrap(e.router)
	}
	return e.router
}

func (e *NetHTTP) ListenAndServe(addr string) error {
	e.srv = &http.Server{Addr: addr, Handler: e.Handler()}
	err := e.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (e *NetHTTP) Shutdown(ctx context.Context) error {
	if e.srv == nil {
		return nil
	}
	return e.srv.Shutdown(ctx)
}

// Router exposes the underlying mux router so callers can mount plain
// net/http handlers (metrics, health) next to framework routes.
func (e *NetHTTP) Router() *mux.Router {
	return e.router
}

func serveNetHTTP(w http.ResponseWriter, r *http.Request, paramNames []string, h HandlerFunc) {
	req := &netRequest{r: r, params: paramNames}
	res := &netResponse{w: w, r: r, body: r.Body}
	h(res, req)
	res.finish()
}

type netRequest struct {
	r      *http.Request
	params []string
}

func (q *netRequest) Method() string      { return q.r.Method }
func (q *netRequest) URL() string         { return q.r.URL.Path }
func (q *netRequest) QueryString() string { return q.r.URL.RawQuery }

func (q *netRequest) Header(name string) string { return q.r.Header.Get(name) }

func (q *netRequest) EachHeader(fn func(key, value string)) {
	for k, vals := range q.r.Header {
		for _, v := range vals {
			fn(k, v)
		}
	}
}

func (q *netRequest) Parameter(index int) string {
	if index < 0 || index >= len(q.params) {
		return ""
	}
	return mux.Vars(q.r)[q.params[index]]
}

func (q *netRequest) PeerAddrBytes() []byte {
	host, _, err := net.SplitHostPort(q.r.RemoteAddr)
	if err != nil {
		return []byte(q.r.RemoteAddr)
	}
	return []byte(host)
}

type netResponse struct {
	w      http.ResponseWriter
	r      *http.Request
	body   io.ReadCloser
	status int
	ended  atomic.Bool
	closed atomic.Bool

	pumpMu   sync.Mutex
	pumping  bool
	abortFns []func()
}

func (p *netResponse) WriteStatus(code int) {
	if p.ended.Load() {
		return
	}
	p.status = code
}

func (p *netResponse) WriteHeader(name, value string) {
	if p.ended.Load() {
		return
	}
	p.w.Header().Add(name, value)
}

func (p *netResponse) End(body []byte) {
	if p.ended.Swap(true) || p.closed.Load() {
		return
	}
	status := p.status
	if status == 0 {
		status = http.StatusOK
	}
	p.w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = p.w.Write(body)
	}
}

// Close aborts the connection. For HTTP/1 the connection is hijacked and
// torn down; transports that cannot hijack just stop writing.
func (p *netResponse) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.ended.Store(true)
	rc := http.NewResponseController(p.w)
	if conn, _, err := rc.Hijack(); err == nil {
		_ = conn.Close()
	}
}

func (p *netResponse) OnData(fn func(chunk []byte, last bool)) {
	p.pumpMu.Lock()
	if p.pumping {
		p.pumpMu.Unlock()
		return
	}
	p.pumping = true
	p.pumpMu.Unlock()

	go func() {
		buf := make([]byte, readChunkSize)
		for {
			n, err := p.body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				fn(chunk, err == io.EOF)
			}
			if err != nil {
				if err != io.EOF {
					p.fireAborted()
				} else if n == 0 {
					fn(nil, true)
				}
				return
			}
			if p.closed.Load() {
				return
			}
		}
	}()
}

func (p *netResponse) OnAborted(fn func()) {
	p.pumpMu.Lock()
	p.abortFns = append(p.abortFns, fn)
	first := len(p.abortFns) == 1
	p.pumpMu.Unlock()
	if !first {
		return
	}
	go func() {
		<-p.r.Context().Done()
		if !p.ended.Load() {
			p.fireAborted()
		}
	}()
}

func (p *netResponse) fireAborted() {
	p.pumpMu.Lock()
	fns := p.abortFns
	p.abortFns = nil
	p.pumpMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// finish drains the context watcher for requests that ended normally.
func (p *netResponse) finish() {
	if !p.ended.Load() {
		p.End(nil)
	}
}

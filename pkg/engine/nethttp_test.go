package engine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// echoHandler buffers the pumped body chunks and echoes them back once the
// stream completes.
func echoHandler(res NativeResponse, req NativeRequest) {
	var mu sync.Mutex
	var buf []byte
	done := make(chan struct{})
	res.OnData(func(chunk []byte, last bool) {
		mu.Lock()
		buf = append(buf, chunk...)
		mu.Unlock()
		if last {
			close(done)
		}
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		res.WriteStatus(http.StatusRequestTimeout)
		res.End(nil)
		return
	}
	mu.Lock()
	defer mu.Unlock()
	res.WriteStatus(http.StatusOK)
	res.End(buf)
}

func TestNetHTTPBodyPump(t *testing.T) {
	e := NewNetHTTP()
	e.Handle(http.MethodPost, "/echo", echoHandler)
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	payload := strings.Repeat("chunked body ", 4096) // spans several reads
	resp, err := http.Post(srv.URL+"/echo", "text/plain", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("echo mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestNetHTTPEmptyBody(t *testing.T) {
	e := NewNetHTTP()
	e.Handle(http.MethodPost, "/echo", echoHandler)
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/echo", "text/plain", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	if len(got) != 0 {
		t.Fatalf("body = %q, want empty", got)
	}
}

func TestNetHTTPCloseTearsDownConnection(t *testing.T) {
	e := NewNetHTTP()
	e.Handle(http.MethodPost, "/sink", func(res NativeResponse, req NativeRequest) {
		var total int64
		var once sync.Once
		closed := make(chan struct{})
		res.OnData(func(chunk []byte, last bool) {
			if atomic.AddInt64(&total, int64(len(chunk))) > 1024 {
				once.Do(func() {
					res.Close()
					close(closed)
				})
			}
		})
		select {
		case <-closed:
		case <-time.After(5 * time.Second):
			t.Error("size ceiling never tripped")
		}
	})
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sink", "application/octet-stream",
		bytes.NewReader(make([]byte, 1<<20)))
	if err == nil {
		resp.Body.Close()
		t.Fatalf("expected a transport error after mid-stream close, got %d", resp.StatusCode)
	}
}

func TestNetHTTPClientAbortFiresCallback(t *testing.T) {
	e := NewNetHTTP()
	aborted := make(chan struct{})
	entered := make(chan struct{})
	e.Handle(http.MethodGet, "/slow", func(res NativeResponse, req NativeRequest) {
		res.OnAborted(func() { close(aborted) })
		close(entered)
		select {
		case <-aborted:
		case <-time.After(5 * time.Second):
		}
	})
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/slow", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	errCh := make(chan error, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if resp != nil {
			resp.Body.Close()
		}
		errCh <- err
	}()

	<-entered
	cancel()

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatalf("abort callback not fired after client went away")
	}
	<-errCh
}

func TestNetHTTPRouteParams(t *testing.T) {
	e := NewNetHTTP()
	e.Handle(http.MethodGet, "/users/{id}/posts/{post}", func(res NativeResponse, req NativeRequest) {
		res.End([]byte(req.Parameter(0) + "/" + req.Parameter(1)))
	})
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/users/7/posts/99")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	if string(got) != "7/99" {
		t.Fatalf("params = %q", got)
	}
}

func TestNetHTTPWrapHandlerApplied(t *testing.T) {
	e := NewNetHTTP()
	e.Handle(http.MethodGet, "/x", func(res NativeResponse, req NativeRequest) {
		res.End([]byte("ok"))
	})
	e.WrapHandler(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Wrapped", "1")
			next.ServeHTTP(w, r)
		})
	})
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Wrapped") != "1" {
		t.Fatalf("wrapper not applied")
	}
}

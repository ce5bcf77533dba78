package web

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"gatekit/pkg/web/webtest"
)

func TestBodyBufferedAcrossChunks(t *testing.T) {
	rec := webtest.NewResponse().
		QueueBody([]byte("hello "), false).
		QueueBody([]byte("world"), true)
	req := NewRequest(webtest.NewRequest("POST", "/"), rec, nil, 0)

	body, err := req.Body(context.Background())
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	if !bytes.Equal(body, []byte("hello world")) {
		t.Fatalf("body = %q", body)
	}
}

func TestBodyIdempotentAndSingleConsumption(t *testing.T) {
	rec := webtest.NewResponse().QueueBody([]byte("payload"), true)
	req := NewRequest(webtest.NewRequest("POST", "/"), rec, nil, 0)

	first, err := req.Body(context.Background())
	if err != nil {
		t.Fatalf("first Body: %v", err)
	}
	second, err := req.Body(context.Background())
	if err != nil {
		t.Fatalf("second Body: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("reads disagree: %q vs %q", first, second)
	}
}

func TestBodyOverLimitClosesConnectionOnce(t *testing.T) {
	rec := webtest.NewResponse().
		QueueBody(make([]byte, 8), false).
		QueueBody(make([]byte, 9), false). // crosses the 16-byte limit
		QueueBody(make([]byte, 100), false).
		QueueBody(make([]byte, 100), true)
	req := NewRequest(webtest.NewRequest("POST", "/"), rec, nil, 16)

	_, err := req.Body(context.Background())
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
	if rec.CloseCalls != 1 {
		t.Fatalf("close calls = %d, want exactly 1", rec.CloseCalls)
	}
}

func TestBodyExactlyAtLimitAccepted(t *testing.T) {
	rec := webtest.NewResponse().QueueBody(make([]byte, 16), true)
	req := NewRequest(webtest.NewRequest("POST", "/"), rec, nil, 16)

	body, err := req.Body(context.Background())
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	if len(body) != 16 {
		t.Fatalf("len = %d", len(body))
	}
	if rec.CloseCalls != 0 {
		t.Fatalf("connection must stay open at exactly the limit")
	}
}

func TestBodyAbortResolvesError(t *testing.T) {
	rec := webtest.NewResponse().QueueBody([]byte("partial"), false)
	req := NewRequest(webtest.NewRequest("POST", "/"), rec, nil, 0)

	done := make(chan struct{})
	var body []byte
	var err error
	go func() {
		body, err = req.Body(context.Background())
		close(done)
	}()
	// Let the reader block on the unresolved stream before aborting.
	time.Sleep(10 * time.Millisecond)
	rec.Abort()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Body did not return after abort")
	}
	if !errors.Is(err, ErrBodyAborted) {
		t.Fatalf("err = %v, want ErrBodyAborted", err)
	}
	if body != nil {
		t.Fatalf("aborted body should be nil")
	}
}

func TestBodyContextCancellationDoesNotPoison(t *testing.T) {
	rec := webtest.NewResponse().QueueBody([]byte("early"), false)
	req := NewRequest(webtest.NewRequest("POST", "/"), rec, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := req.Body(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The stream completes afterwards; a later read collects the body.
	rec.PushBody([]byte(" bird"), true)
	body, err := req.Body(context.Background())
	if err != nil {
		t.Fatalf("Body after completion: %v", err)
	}
	if !bytes.Equal(body, []byte("early bird")) {
		t.Fatalf("body = %q", body)
	}
}

func TestBodyLateChunksAfterOverflowIgnored(t *testing.T) {
	rec := webtest.NewResponse().QueueBody(make([]byte, 32), false)
	req := NewRequest(webtest.NewRequest("POST", "/"), rec, nil, 16)

	if _, err := req.Body(context.Background()); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected overflow")
	}
	closes := rec.CloseCalls
	// Transport keeps pushing; nothing changes.
	rec.PushBody(make([]byte, 1024), false)
	rec.PushBody(make([]byte, 1024), true)
	if rec.CloseCalls != closes {
		t.Fatalf("late chunks must not close again")
	}
	if _, err := req.Body(context.Background()); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("outcome must stay ErrBodyTooLarge")
	}
}

func TestBodyEmptyStream(t *testing.T) {
	rec := webtest.NewResponse().QueueBody(nil, true)
	req := NewRequest(webtest.NewRequest("POST", "/"), rec, nil, 0)

	body, err := req.Body(context.Background())
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	if len(body) != 0 {
		t.Fatalf("body = %q, want empty", body)
	}
}

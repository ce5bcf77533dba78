package web

import (
	"context"
	"errors"
	"sync"

	"gatekit/pkg/engine"
	"gatekit/pkg/logger"
	"gatekit/pkg/telemetry"
)

var (
	// ErrBodyTooLarge is returned when the accumulated body would exceed
	// the configured ceiling. The connection is closed when this fires.
	ErrBodyTooLarge = errors.New("request body exceeds size limit")
	// ErrBodyAborted is returned when the peer went away mid-stream.
	ErrBodyAborted = errors.New("request aborted before body completed")
)

// DefaultMaxBodySize is the body ceiling applied when none is configured.
const DefaultMaxBodySize = 10 << 20 // 10 MiB

// bodyReader bridges the push-based chunk callbacks of a native transport
// into a single awaitable buffer with a hard size ceiling.
//
// The outcome is a write-once cell: the first resolution (complete body,
// size overflow, or abort) closes done and every later callback invocation
// is a cheap synchronous no-op. The size check runs inline in the data
// callback, before any cross-goroutine signaling, so a flood of post-limit
// chunks cannot queue work or retain memory. Callbacks close over this
// struct only, never the Response wrapper, so they stay safely ignorable
// after the request's logical lifetime ends.
type bodyReader struct {
	limit int64

	mu       sync.Mutex
	buf      []byte
	total    int64
	resolved bool
	err      error
	done     chan struct{}

	closeOnce sync.Once
	native    engine.NativeResponse
}

// newBodyReader registers the data and abort callbacks immediately; the
// native stream can only be consumed once, so construction is the single
// point of registration.
func newBodyReader(native engine.NativeResponse, limit int64) *bodyReader {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	b := &bodyReader{limit: limit, done: make(chan struct{}), native: native}
	native.OnData(b.onData)
	native.OnAborted(b.onAborted)
	return b
}

func (b *bodyReader) onData(chunk []byte, last bool) {
	b.mu.Lock()
	if b.resolved {
		b.mu.Unlock()
		return
	}
	b.total += int64(len(chunk))
	if b.total > b.limit {
		// Decided synchronously, before any handoff: drop what we
		// buffered, fail the waiter once, and kill the connection so
		// the peer stops sending.
		b.buf = nil
		b.resolveLocked(ErrBodyTooLarge)
		b.mu.Unlock()
		b.closeOnce.Do(b.native.Close)
		telemetry.BodyAborts.Inc()
		logger.Warn("body_limit_exceeded", "limit", b.limit)
		return
	}
	if len(chunk) > 0 {
		b.buf = append(b.buf, chunk...)
	}
	if last {
		b.resolveLocked(nil)
	}
	b.mu.Unlock()
}

func (b *bodyReader) onAborted() {
	b.mu.Lock()
	if !b.resolved {
		b.buf = nil
		b.resolveLocked(ErrBodyAborted)
	}
	b.mu.Unlock()
}

// resolveLocked records the outcome and performs the one cross-goroutine
// handoff for it. Callers hold b.mu.
func (b *bodyReader) resolveLocked(err error) {
	b.resolved = true
	b.err = err
	close(b.done)
}

// Await blocks until the body resolves or ctx is canceled. Cancellation
// leaves the callbacks registered and harmless; a later Await can still
// observe the outcome.
func (b *bodyReader) Await(ctx context.Context) ([]byte, error) {
	select {
	case <-b.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return b.buf, nil
}

// Package ratelimit provides sliding-window admission control with bounded
// memory, plus the middleware and maintenance plumbing around it.
package ratelimit

import (
	"container/list"
	"sync"
	"time"

	"gatekit/pkg/telemetry"
)

// Defaults applied when a field is zero or negative.
const (
	DefaultRequests   = 100
	DefaultWindow     = 60 * time.Second
	DefaultMaxEntries = 10000
	defaultSweepEvery = 100
)

// Limiter is a fixed-capacity, LRU-evicting sliding-window counter. One
// coarse mutex guards the whole structure: admission control is not a hot
// numeric loop, and a single lock keeps the check-and-append sequence
// race-free. All time accounting is monotonic (offsets from a fixed base
// taken at construction), so wall-clock rollback cannot reopen a window.
type Limiter struct {
	requests   int
	window     time.Duration
	maxEntries int
	sweepEvery int

	mu      sync.Mutex
	base    time.Time
	entries map[string]*list.Element
	order   *list.List // front = least recently touched
	calls   int
}

type windowEntry struct {
	key   string
	times []time.Duration // offsets from base, ascending by construction
}

// NewLimiter builds a limiter allowing `requests` per `window` across at
// most `maxEntries` distinct keys.
func NewLimiter(requests int, window time.Duration, maxEntries int) *Limiter {
	if requests <= 0 {
		requests = DefaultRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Limiter{
		requests:   requests,
		window:     window,
		maxEntries: maxEntries,
		sweepEvery: defaultSweepEvery,
		base:       time.Now(),
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Limit returns the per-window request budget.
func (l *Limiter) Limit() int { return l.requests }

// Window returns the sliding window length.
func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) now() time.Duration { return time.Since(l.base) }

// IsAllowed records an admission attempt for key. It returns true and
// counts the request when the key is under its budget, false otherwise.
func (l *Limiter) IsAllowed(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%l.sweepEvery == 0 {
		l.sweepLocked(now)
	}

	elem, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.maxEntries {
			l.evictOldestLocked()
		}
		elem = l.order.PushBack(&windowEntry{key: key})
		l.entries[key] = elem
	} else {
		// Touch: re-insert at the back so eviction always removes the
		// structurally-first (oldest-touched) entry.
		l.order.MoveToBack(elem)
	}

	e := elem.Value.(*windowEntry)
	e.times = pruneExpired(e.times, now, l.window)
	if len(e.times) < l.requests {
		e.times = append(e.times, now)
		return true
	}
	return false
}

// RemainingRequests returns how many requests key may still make in the
// current window. Absent keys report the full budget and are not created.
func (l *Limiter) RemainingRequests(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, ok := l.entries[key]
	if !ok {
		return l.requests
	}
	e := elem.Value.(*windowEntry)
	e.times = pruneExpired(e.times, l.now(), l.window)
	if rem := l.requests - len(e.times); rem > 0 {
		return rem
	}
	return 0
}

// ResetTime returns the duration until the key's oldest recorded request
// leaves the window, or 0 when the key has no live entries. Absent keys are
// not created.
func (l *Limiter) ResetTime(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, ok := l.entries[key]
	if !ok {
		return 0
	}
	e := elem.Value.(*windowEntry)
	e.times = pruneExpired(e.times, l.now(), l.window)
	if len(e.times) == 0 {
		return 0
	}
	if d := e.times[0] + l.window - l.now(); d > 0 {
		return d
	}
	return 0
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// SweepIdle prunes every key and drops the empty ones, returning how many
// keys were removed. The janitor calls this on a schedule.
func (l *Limiter) SweepIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	before := len(l.entries)
	l.sweepLocked(l.now())
	return before - len(l.entries)
}

func (l *Limiter) sweepLocked(now time.Duration) {
	for elem := l.order.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*windowEntry)
		e.times = pruneExpired(e.times, now, l.window)
		if len(e.times) == 0 {
			l.order.Remove(elem)
			delete(l.entries, e.key)
		}
		elem = next
	}
}

func (l *Limiter) evictOldestLocked() {
	front := l.order.Front()
	if front == nil {
		return
	}
	e := front.Value.(*windowEntry)
	l.order.Remove(front)
	delete(l.entries, e.key)
	telemetry.RateLimitEvictions.Inc()
}

// pruneExpired drops offsets older than now-window. Input and output stay
// ascending.
func pruneExpired(times []time.Duration, now, window time.Duration) []time.Duration {
	cutoff := now - window
	i := 0
	for i < len(times) && times[i] <= cutoff {
		i++
	}
	if i == 0 {
		return times
	}
	return append(times[:0], times[i:]...)
}

package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWindowAllowThenDenyThenRecover(t *testing.T) {
	l := NewLimiter(2, 100*time.Millisecond, 10)

	if !l.IsAllowed("k") {
		t.Fatalf("first request should be allowed")
	}
	if !l.IsAllowed("k") {
		t.Fatalf("second request should be allowed")
	}
	if l.IsAllowed("k") {
		t.Fatalf("third request should be denied")
	}

	time.Sleep(120 * time.Millisecond)
	if !l.IsAllowed("k") {
		t.Fatalf("request after window should be allowed")
	}
}

func TestDeniedRequestNotCounted(t *testing.T) {
	l := NewLimiter(1, time.Hour, 10)
	l.IsAllowed("k")
	for i := 0; i < 5; i++ {
		l.IsAllowed("k")
	}
	// Only the single admitted request occupies the window.
	if rem := l.RemainingRequests("k"); rem != 0 {
		t.Fatalf("remaining = %d, want 0", rem)
	}
	if reset := l.ResetTime("k"); reset <= 0 {
		t.Fatalf("reset should be positive, got %v", reset)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Hour, 10)
	if !l.IsAllowed("a") {
		t.Fatalf("a should be allowed")
	}
	if l.IsAllowed("a") {
		t.Fatalf("a should be denied")
	}
	if !l.IsAllowed("b") {
		t.Fatalf("b should be allowed")
	}
}

func TestCapacityEvictsOldestTouched(t *testing.T) {
	l := NewLimiter(10, time.Hour, 3)
	l.IsAllowed("a")
	l.IsAllowed("b")
	l.IsAllowed("c")
	// Touch a so b becomes the oldest-touched entry.
	l.IsAllowed("a")

	l.IsAllowed("d")
	if n := l.Len(); n != 3 {
		t.Fatalf("len = %d, want 3", n)
	}
	// b was evicted: a fresh entry reports the full budget while a still
	// carries its two admissions.
	if rem := l.RemainingRequests("b"); rem != 10 {
		t.Fatalf("evicted key remaining = %d, want full budget", rem)
	}
	if rem := l.RemainingRequests("a"); rem != 8 {
		t.Fatalf("surviving key remaining = %d, want 8", rem)
	}
}

func TestReadsDoNotCreateEntries(t *testing.T) {
	l := NewLimiter(5, time.Hour, 10)
	if rem := l.RemainingRequests("ghost"); rem != 5 {
		t.Fatalf("remaining = %d, want 5", rem)
	}
	if reset := l.ResetTime("ghost"); reset != 0 {
		t.Fatalf("reset = %v, want 0", reset)
	}
	if n := l.Len(); n != 0 {
		t.Fatalf("len = %d, want 0", n)
	}
}

func TestSweepIdleDropsExpiredKeys(t *testing.T) {
	l := NewLimiter(5, 50*time.Millisecond, 100)
	for i := 0; i < 10; i++ {
		l.IsAllowed(fmt.Sprintf("k%d", i))
	}
	time.Sleep(70 * time.Millisecond)
	if removed := l.SweepIdle(); removed != 10 {
		t.Fatalf("removed = %d, want 10", removed)
	}
	if n := l.Len(); n != 0 {
		t.Fatalf("len = %d, want 0", n)
	}
}

func TestConcurrentAdmissionNeverExceedsBudget(t *testing.T) {
	const (
		budget     = 100
		goroutines = 8
		attempts   = 200
	)
	l := NewLimiter(budget, time.Hour, 50)

	var admitted int64
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < attempts; i++ {
				if l.IsAllowed("shared") {
					atomic.AddInt64(&admitted, 1)
				}
				// Interleave reads with admissions.
				l.RemainingRequests("shared")
				l.ResetTime("shared")
			}
		}()
	}
	wg.Wait()

	if admitted != budget {
		t.Fatalf("admitted = %d, want exactly %d", admitted, budget)
	}
	if rem := l.RemainingRequests("shared"); rem != 0 {
		t.Fatalf("remaining = %d, want 0", rem)
	}
}

func TestConcurrentInsertsRespectCapacity(t *testing.T) {
	const maxEntries = 50
	l := NewLimiter(10, time.Hour, maxEntries)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				l.IsAllowed(fmt.Sprintf("g%d-k%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	if n := l.Len(); n != maxEntries {
		t.Fatalf("len = %d, want %d", n, maxEntries)
	}
}

func TestDefaultsApplied(t *testing.T) {
	l := NewLimiter(0, 0, 0)
	if l.Limit() != DefaultRequests {
		t.Fatalf("limit = %d", l.Limit())
	}
	if l.Window() != DefaultWindow {
		t.Fatalf("window = %v", l.Window())
	}
}

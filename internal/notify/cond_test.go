package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// TestBroadcastWakesAllWaiters verifies every waiter returns after a broadcast.
func TestBroadcastWakesAllWaiters(t *testing.T) {
	var mu sync.Mutex
	cond := NewCond(&mu)
	ready := false
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			for !ready {
				cond.Wait()
			}
			mu.Unlock()
		}()
	}
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	ready = true
	cond.Broadcast()
	mu.Unlock()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("waiters were not woken")
	}
}

// TestWaitTimeoutExpires verifies a timed wait reports expiry.
func TestWaitTimeoutExpires(t *testing.T) {
	var mu sync.Mutex
	cond := NewCond(&mu)
	mu.Lock()
	defer mu.Unlock()
	start := time.Now()
	if cond.WaitTimeout(30 * time.Millisecond) {
		t.Fatalf("expected timeout")
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatalf("returned before timeout")
	}
}

// TestWaitContextCanceled verifies cancellation ends the wait with ctx.Err.
func TestWaitContextCanceled(t *testing.T) {
	var mu sync.Mutex
	cond := NewCond(&mu)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	mu.Lock()
	err := cond.WaitContext(ctx, -1)
	mu.Unlock()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// TestBroadcastWithoutWaiters is a no-op.
func TestBroadcastWithoutWaiters(t *testing.T) {
	var mu sync.Mutex
	cond := NewCond(&mu)
	mu.Lock()
	cond.Broadcast()
	cond.Broadcast()
	mu.Unlock()
}

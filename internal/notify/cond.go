// Package notify provides a broadcast condition variable whose waits can be
// bounded by a timeout or a context, which sync.Cond does not support.
package notify

import (
	"context"
	"sync"
	"time"
)

// Cond is a condition variable tied to a Locker. Wait and Broadcast must be
// called with L held.
type Cond struct {
	L  sync.Locker
	ch chan struct{}
}

// NewCond returns a Cond guarded by l.
func NewCond(l sync.Locker) *Cond {
	return &Cond{L: l}
}

// Broadcast wakes every goroutine currently waiting on c.
func (c *Cond) Broadcast() {
	if c.ch != nil {
		close(c.ch)
		c.ch = nil
	}
}

// Wait releases L until the next Broadcast and reacquires it before returning.
func (c *Cond) Wait() {
	ch := c.channel()
	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// WaitTimeout is Wait bounded by d. It reports false when d elapsed first.
// A negative d waits without bound.
func (c *Cond) WaitTimeout(d time.Duration) bool {
	if d < 0 {
		c.Wait()
		return true
	}
	ch := c.channel()
	c.L.Unlock()
	defer c.L.Lock()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

// WaitContext is WaitTimeout that also returns early with ctx.Err() when ctx
// is done. A nil error means a broadcast or the timeout ended the wait.
func (c *Cond) WaitContext(ctx context.Context, d time.Duration) error {
	ch := c.channel()
	c.L.Unlock()
	defer c.L.Lock()
	var timeout <-chan time.Time
	if d >= 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ch:
		return nil
	case <-timeout:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// channel returns the wait channel for the current broadcast generation.
func (c *Cond) channel() chan struct{} {
	if c.ch == nil {
		c.ch = make(chan struct{})
	}
	return c.ch
}

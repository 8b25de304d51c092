// Package testutil holds helpers shared by the gateway, pool and CLI tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// DefaultTimeout bounds a test context when no timeout is given.
const DefaultTimeout = 5 * time.Second

// Context returns a context cancelled after timeout, or one second before the
// test binary's own deadline if that comes first. It is cancelled on cleanup.
func Context(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if dt, ok := t.(interface{ Deadline() (time.Time, bool) }); ok {
		if deadline, ok := dt.Deadline(); ok {
			if remaining := time.Until(deadline) - time.Second; remaining > 0 && remaining < timeout {
				timeout = remaining
			}
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Eventually polls cond every interval until it holds, failing the test with
// the formatted message once timeout passes.
func Eventually(t testing.TB, timeout, interval time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	attempts := 0
	for {
		attempts++
		if cond() {
			return
		}
		select {
		case <-deadline.C:
			message := fmt.Sprintf(format, args...)
			if message == "" {
				message = "condition not met"
			}
			t.Fatalf("%s (after %d checks in %s)", message, attempts, timeout)
		case <-ticker.C:
		}
	}
}

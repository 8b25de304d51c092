package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"quotagate/internal/notify"
)

// Core is one lease of the total quota. It makes at most one upstream call at
// a time through its own Client.
type Core struct {
	admin    *Admin
	index    int
	capacity int
	// left is guarded by admin.permMu.
	left   int
	client Client

	// mu serializes calls on this Core. cond is broadcast when a
	// resynchronization releases the Core.
	mu   sync.Mutex
	cond *notify.Cond
}

// newCore builds a Core holding a full lease.
func newCore(admin *Admin, index, capacity int, client Client) *Core {
	c := &Core{
		admin:    admin,
		index:    index,
		capacity: capacity,
		left:     capacity,
		client:   client,
	}
	c.cond = notify.NewCond(&c.mu)
	return c
}

// acquirePermission takes one token, waiting for a refill when the lease is
// empty. It returns false when a state switch is pending or ctx is done.
// Callers hold admin.permMu.
func (c *Core) acquirePermission(ctx context.Context) bool {
	a := c.admin
	for {
		if a.sm.SwitchPending() {
			return false
		}
		if c.left > 0 {
			c.left--
			return true
		}
		if err := a.permCond.WaitContext(ctx, a.cfg.Quota.Window); err != nil {
			return false
		}
	}
}

// call runs method under this Core's lease. Limit exceeded answers trigger a
// resynchronization and the call is retried once the Core is released.
func (c *Core) call(ctx context.Context, method Method, args []any) (Response, error) {
	a := c.admin
	for {
		a.permMu.Lock()
		if !c.acquirePermission(ctx) {
			a.permMu.Unlock()
			if err := ctx.Err(); err != nil {
				return Response{}, fmt.Errorf("%w: %w", ErrPermissionFail, err)
			}
			return Response{}, ErrPermissionFail
		}
		c.mu.Lock()
		a.permMu.Unlock()

		started := a.now()
		resp, err := method(ctx, c.client, args...)
		outcome := Outcome{Core: c.index, Latency: a.now().Sub(started), At: a.now()}

		a.postMu.Lock()
		if err != nil {
			verdict, wrapped := a.classifyFailure(err, &outcome)
			a.postMu.Unlock()
			c.mu.Unlock()
			a.observer.OnCall(outcome)
			if verdict == Trip {
				a.requestBreakerOpen(string(outcome.Kind))
			}
			return Response{}, wrapped
		}

		outcome.Code = resp.Status.Code
		switch resp.Status.Code {
		case StatusOK:
			outcome.Kind = OutcomeOK
			a.recordSuccess()
			a.armReset(a.cfg.Quota.Window)
			a.postMu.Unlock()
			c.mu.Unlock()
			a.observer.OnCall(outcome)
			return resp, nil
		case StatusLimitExceeded:
			outcome.Kind = OutcomeLimitExceeded
			a.requestSync(c.index)
			a.postMu.Unlock()
			a.observer.OnCall(outcome)
			waitErr := c.cond.WaitContext(ctx, a.cfg.Quota.Window)
			c.mu.Unlock()
			if waitErr != nil {
				return Response{}, fmt.Errorf("%w: %w", ErrPermissionFail, waitErr)
			}
		default:
			outcome.Kind = OutcomeStatus
			verdict := a.policy.PushStatusCode(resp.Status.Code)
			a.postMu.Unlock()
			c.mu.Unlock()
			a.observer.OnCall(outcome)
			if verdict == Trip {
				a.requestBreakerOpen("status " + resp.Status.Code)
			}
			return resp, nil
		}
	}
}

// classifyFailure feeds a collaborator error to the policy and wraps it with
// its caller-facing kind. Caller cancellation is not held against upstream.
func (a *Admin) classifyFailure(err error, outcome *Outcome) (Verdict, error) {
	outcome.Err = err.Error()
	switch {
	case errors.Is(err, context.Canceled):
		outcome.Kind = OutcomeCanceled
		return Pass, fmt.Errorf("%w: %w", ErrInternal, err)
	case isTimeout(err):
		outcome.Kind = OutcomeTimeout
		return a.policy.PushTimeout(), fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		outcome.Kind = OutcomeError
		a.log.Debug("upstream call failed", zap.Int("core", outcome.Core), zap.Error(err))
		return a.policy.PushError(), fmt.Errorf("%w: %w", ErrInternal, err)
	}
}

// splitQuota divides total across n leases, the remainder going to the first.
func splitQuota(total, n int) []int {
	caps := make([]int, n)
	base, rem := total/n, total%n
	for i := range caps {
		caps[i] = base
		if i < rem {
			caps[i]++
		}
	}
	return caps
}

// chargeMiss removes miss tokens evenly across cores, the remainder from the
// lowest indexes. A lease never drops below zero. Callers hold admin.permMu.
func chargeMiss(cores []*Core, miss int) {
	if len(cores) == 0 || miss <= 0 {
		return
	}
	per, rem := miss/len(cores), miss%len(cores)
	for i, c := range cores {
		charge := per
		if i < rem {
			charge++
		}
		c.left = max(c.left-charge, 0)
	}
}

// refill restores every lease to capacity. Callers hold admin.permMu.
func refill(cores []*Core) {
	for _, c := range cores {
		c.left = c.capacity
	}
}

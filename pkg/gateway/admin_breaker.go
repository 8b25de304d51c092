package gateway

import (
	"context"

	"go.uber.org/zap"
)

// requestBreakerOpen schedules the breaker to open once in-flight calls end.
func (a *Admin) requestBreakerOpen(reason string) {
	if a.timers.Reserve(timerUnavailable, 0, a.openBreaker) {
		a.log.Warn("breaker trip requested", zap.String("reason", reason))
	}
}

// openBreaker moves the Admin from Ok to Unavailable and empties every lease.
func (a *Admin) openBreaker() {
	if _, ok := a.sm.StartStateSwitch(StateOk); !ok {
		return
	}
	defer a.sm.EndStateSwitch()

	a.timers.Cancel(timerReset, true)
	a.permMu.Lock()
	for _, c := range a.cores {
		c.left = 0
	}
	a.permMu.Unlock()

	a.sm.SwitchState(StateUnavailable, SubOk)
	a.transition(StateOk, StateUnavailable, "breaker open")
	a.log.Warn("breaker open, upstream marked unavailable")
}

// CheckServiceStatus probes the upstream while the breaker is open and closes
// it on a clean answer. It reports true when the Admin is not Unavailable or
// the probe succeeded.
func (a *Admin) CheckServiceStatus(ctx context.Context) bool {
	if !a.sm.StartEvent(ctx, false, StateUnavailable).OK {
		return true
	}
	healthy := a.probeRecovery(ctx)
	a.sm.EndEvent()
	if !healthy {
		return false
	}
	a.closeBreaker()
	return true
}

// probeRecovery runs one probe on the first Core.
func (a *Admin) probeRecovery(ctx context.Context) bool {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	a.permMu.Lock()
	core := a.cores[0]
	a.permMu.Unlock()

	core.mu.Lock()
	outcome, resp, err := a.probe(ctx, core)
	core.mu.Unlock()

	if err != nil {
		outcome.Err = err.Error()
		outcome.Kind = OutcomeError
		if isTimeout(err) {
			outcome.Kind = OutcomeTimeout
		}
		a.observer.OnCall(outcome)
		a.log.Debug("recovery probe failed", zap.Error(err))
		return false
	}
	outcome.Kind = OutcomeStatus
	if resp.OK() {
		outcome.Kind = OutcomeOK
	}
	a.observer.OnCall(outcome)
	return resp.OK()
}

// closeBreaker moves the Admin from Unavailable back to Ok, clears the policy
// and restores every lease.
func (a *Admin) closeBreaker() {
	if _, ok := a.sm.StartStateSwitch(StateUnavailable); !ok {
		return
	}
	a.policy.Reset()
	a.resetMiss()
	a.permMu.Lock()
	refill(a.cores)
	a.permCond.Broadcast()
	a.permMu.Unlock()
	a.sm.SwitchState(StateOk, SubOk)
	a.sm.EndStateSwitch()

	a.armReset(0)
	a.transition(StateUnavailable, StateOk, "recovered")
	a.log.Info("breaker closed, upstream available")
}

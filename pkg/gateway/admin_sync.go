package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// requestSync marks the Admin as synchronizing and schedules a
// resynchronization unless one is already pending. A request made while a
// resynchronization is finishing queues another one behind it.
func (a *Admin) requestSync(core int) {
	a.sm.SetSubState(SubSynchronizing)
	if a.timers.Follow(timerSynchronize, 0, a.synchronize) {
		a.log.Debug("resynchronization requested", zap.Int("core", core))
	}
}

// synchronize freezes every Core, probes the upstream until it stops
// answering limit exceeded and realigns the leases with the upstream window.
func (a *Admin) synchronize() {
	if !a.sm.StartEvent(context.Background(), false, StateOk).OK {
		return
	}
	defer a.sm.EndEvent()

	// The reset callback takes syncMu, so it is drained before the freeze.
	a.timers.Cancel(timerReset, true)

	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	a.permMu.Lock()
	cores := a.cores
	for _, c := range cores {
		c.mu.Lock()
	}
	a.timers.Cancel(timerReset, false)
	a.resetEpoch.Add(1)

	started := a.now()
	probes, ok := a.probeUntilSettled(cores[0])
	result := SyncResult{OK: ok, Probes: probes}

	if ok {
		a.missMu.Lock()
		now := a.now()
		if !a.missAt.IsZero() {
			result.Drift = now.Sub(a.missAt)
		}
		result.Miss = a.syncMiss
		a.lastSync = now.Add(-result.Drift)
		a.syncMiss = 0
		a.missAt = time.Time{}
		a.missMu.Unlock()

		a.armReset(max(a.cfg.Quota.Window-result.Drift, 0))
		refill(cores)
		// The probe itself consumed one call of the new window.
		chargeMiss(cores, result.Miss+1)
		a.sm.SetSubState(SubOk)
	} else {
		a.requestBreakerOpen("resynchronization failed")
	}

	for i := len(cores) - 1; i >= 0; i-- {
		cores[i].cond.Broadcast()
		cores[i].mu.Unlock()
	}
	a.permCond.Broadcast()
	a.permMu.Unlock()

	result.At = a.now()
	result.Duration = result.At.Sub(started)
	a.observer.OnSync(result)
	a.log.Info("resynchronization finished",
		zap.Bool("ok", ok),
		zap.Int("probes", probes),
		zap.Int("miss", result.Miss),
		zap.Duration("drift", result.Drift),
		zap.Duration("took", result.Duration))
}

// probeUntilSettled probes through core until the upstream gives a definitive
// answer. It gives up after one and a half windows or when the policy trips.
// Callers hold core.mu.
func (a *Admin) probeUntilSettled(core *Core) (int, bool) {
	deadline := a.now().Add(a.cfg.Quota.Window * 3 / 2)
	probes := 0
	for {
		probes++
		outcome, resp, err := a.probe(context.Background(), core)
		switch {
		case err != nil:
			verdict, _ := a.classifyFailure(err, &outcome)
			a.observer.OnCall(outcome)
			if verdict == Trip {
				return probes, false
			}
		case resp.Status.Code == StatusLimitExceeded:
			outcome.Kind = OutcomeLimitExceeded
			a.observer.OnCall(outcome)
			time.Sleep(a.cfg.SyncPollInterval)
		default:
			outcome.Kind = OutcomeStatus
			if resp.OK() {
				outcome.Kind = OutcomeOK
			}
			a.observer.OnCall(outcome)
			return probes, a.policy.PushStatusCode(resp.Status.Code) == Pass
		}
		if a.now().After(deadline) {
			return probes, false
		}
	}
}

// probe runs the configured probe method on core.
func (a *Admin) probe(ctx context.Context, core *Core) (Outcome, Response, error) {
	started := a.now()
	resp, err := a.cfg.Probe(ctx, core.client)
	outcome := Outcome{
		Core:    core.index,
		Probe:   true,
		Code:    resp.Status.Code,
		Latency: a.now().Sub(started),
		At:      a.now(),
	}
	return outcome, resp, err
}

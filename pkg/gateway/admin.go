// Package gateway admits calls to a rate-limited upstream. An Admin splits the
// upstream quota into per-Core leases, realigns them when the upstream reports
// the limit was exceeded, and opens a breaker when the upstream misbehaves.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"quotagate/internal/notify"
)

// Admin owns the Cores, the state machine, the named timers and the breaker
// policy.
//
// Lock order: syncMu, permMu, each Core's mu by index, postMu, missMu. The
// policy and timer locks are leaves.
type Admin struct {
	cfg      Config
	factory  ClientFactory
	log      *zap.Logger
	observer Observer
	now      func() time.Time

	sm     *StateMachine[State, SubState]
	timers *TimerManager
	policy *UnavailabilityPolicy

	// syncMu serializes resynchronization, quota resets and recovery probes.
	syncMu sync.Mutex

	// permMu guards cores, next and every Core's left.
	permMu   sync.Mutex
	permCond *notify.Cond
	cores    []*Core
	next     int

	// postMu serializes outcome handling after upstream calls.
	postMu sync.Mutex

	missMu   sync.Mutex
	syncMiss int
	missAt   time.Time
	lastSync time.Time

	// resetEpoch changes on every resynchronization so a reset that fired
	// before it can tell its refill is stale.
	resetEpoch atomic.Uint64
}

// New builds an idle Admin. Call Init before GetData.
func New(cfg Config, factory ClientFactory, opts ...Option) (*Admin, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: client factory is required", ErrInvalidConfig)
	}
	if cfg.SyncPollInterval <= 0 {
		cfg.SyncPollInterval = defaultSyncPollInterval
	}
	a := &Admin{
		cfg:      cfg,
		factory:  factory,
		log:      zap.NewNop(),
		observer: nopObserver{},
		now:      time.Now,
		sm:       NewStateMachine(StateIdle, SubOk),
		timers:   NewTimerManager(),
		policy:   NewUnavailabilityPolicy(cfg.Policy),
	}
	a.permCond = notify.NewCond(&a.permMu)
	for _, opt := range opts {
		opt(a)
	}
	a.sm.OnSwitchPending(a.wakePermissionWaiters)
	return a, nil
}

// Init opens one Client per Core and moves the Admin from Idle to Ok.
func (a *Admin) Init(ctx context.Context) error {
	if _, ok := a.sm.StartStateSwitch(StateIdle); !ok {
		return fmt.Errorf("%w: admin already initialized", ErrInvalidUse)
	}
	defer a.sm.EndStateSwitch()

	capacities := splitQuota(a.cfg.Quota.Count, a.cfg.Cores)
	cores := make([]*Core, 0, len(capacities))
	for i, capacity := range capacities {
		client := a.factory()
		if err := client.Open(ctx); err != nil {
			closeClients(cores)
			return fmt.Errorf("open client for core %d: %w", i, err)
		}
		cores = append(cores, newCore(a, i, capacity, client))
	}

	a.permMu.Lock()
	a.cores = cores
	a.next = 0
	a.permMu.Unlock()
	a.policy.Reset()
	a.resetMiss()

	a.sm.SwitchState(StateOk, SubOk)
	a.transition(StateIdle, StateOk, "init")
	a.log.Info("gateway initialized",
		zap.Int("cores", len(cores)),
		zap.Int("quota", a.cfg.Quota.Count),
		zap.Duration("window", a.cfg.Quota.Window))
	return nil
}

// Close cancels every timer, closes every Client and returns the Admin to
// Idle. Closing an idle Admin is a no-op.
func (a *Admin) Close() error {
	from, ok := a.sm.AwaitStateSwitch(context.Background(), StateOk, StateUnavailable)
	if !ok {
		return nil
	}
	defer a.sm.EndStateSwitch()

	a.timers.CancelAll()
	a.permMu.Lock()
	cores := a.cores
	a.cores = nil
	a.permCond.Broadcast()
	a.permMu.Unlock()

	err := closeClients(cores)
	a.sm.SwitchState(StateIdle, SubOk)
	a.transition(from, StateIdle, "close")
	a.log.Info("gateway closed")
	return err
}

// GetData runs method on the next Core. It blocks while a state switch is
// pending and while the chosen Core waits for quota.
func (a *Admin) GetData(ctx context.Context, method Method, args ...any) (Response, error) {
	admission := a.sm.StartEvent(ctx, true, StateOk)
	if !admission.OK {
		if admission.State == StateIdle {
			return Response{}, ErrInvalidUse
		}
		return Response{}, ErrServiceUnavailable
	}
	defer a.sm.EndEvent()
	return a.pickCore().call(ctx, method, args)
}

// Ping issues the configured probe through the normal admission path.
func (a *Admin) Ping(ctx context.Context) (Response, error) {
	return a.GetData(ctx, a.cfg.Probe)
}

// State returns the current Admin state.
func (a *Admin) State() State {
	return a.sm.State()
}

// pickCore returns the next Core in round-robin order.
func (a *Admin) pickCore() *Core {
	a.permMu.Lock()
	defer a.permMu.Unlock()
	core := a.cores[a.next]
	a.next = (a.next + 1) % len(a.cores)
	return core
}

// wakePermissionWaiters lets quota waiters notice a pending switch.
func (a *Admin) wakePermissionWaiters() {
	a.permMu.Lock()
	a.permCond.Broadcast()
	a.permMu.Unlock()
}

// recordSuccess counts a success that slipped through while a
// resynchronization was requested. Callers hold postMu.
func (a *Admin) recordSuccess() {
	if a.sm.SubState() != SubSynchronizing {
		return
	}
	a.missMu.Lock()
	a.syncMiss++
	if a.missAt.IsZero() {
		a.missAt = a.now()
	}
	a.missMu.Unlock()
}

// resetMiss clears miss accounting.
func (a *Admin) resetMiss() {
	a.missMu.Lock()
	a.syncMiss = 0
	a.missAt = time.Time{}
	a.missMu.Unlock()
}

// armReset schedules the quota reset unless one is already pending.
func (a *Admin) armReset(delay time.Duration) {
	if a.timers.Reserve(timerReset, delay, a.resetQuota) {
		a.log.Debug("quota reset scheduled", zap.Duration("delay", delay))
	}
}

// resetQuota refills every lease. It runs on the reset timer.
func (a *Admin) resetQuota() {
	if !a.sm.StartEvent(context.Background(), false, StateOk).OK {
		return
	}
	defer a.sm.EndEvent()

	epoch := a.resetEpoch.Load()
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	if epoch != a.resetEpoch.Load() {
		a.log.Debug("stale quota reset skipped")
		return
	}
	a.permMu.Lock()
	refill(a.cores)
	a.permCond.Broadcast()
	a.permMu.Unlock()
	a.log.Debug("quota reset")
}

// transition reports a state change to the observer.
func (a *Admin) transition(from, to State, reason string) {
	a.observer.OnTransition(Transition{From: from, To: to, Reason: reason, At: a.now()})
}

// closeClients closes every Core's client, joining the errors.
func closeClients(cores []*Core) error {
	var errs []error
	for _, c := range cores {
		if err := c.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close client for core %d: %w", c.index, err))
		}
	}
	return errors.Join(errs...)
}

package gateway

import (
	"context"
	"slices"
	"sync"

	"quotagate/internal/notify"
)

// Admission reports the outcome of StartEvent.
type Admission[S comparable] struct {
	OK            bool
	State         S
	SwitchPending bool
}

// StateMachine holds a state and sub-state guarded by two classes of events.
// Type1 events (StartEvent/EndEvent) run concurrently with each other. A Type2
// event (StartStateSwitch/EndStateSwitch) waits for every admitted Type1 event
// to end and blocks new ones while it is pending or held. At most one Type2
// event is pending at a time.
type StateMachine[S comparable, Sub comparable] struct {
	mu      sync.Mutex
	cond    *notify.Cond
	state   S
	sub     Sub
	active  int
	pending bool

	onSwitch func()
}

// NewStateMachine returns a StateMachine in the given state.
func NewStateMachine[S comparable, Sub comparable](state S, sub Sub) *StateMachine[S, Sub] {
	m := &StateMachine[S, Sub]{state: state, sub: sub}
	m.cond = notify.NewCond(&m.mu)
	return m
}

// OnSwitchPending registers fn to run each time a Type2 event becomes pending,
// before it waits for Type1 events to drain. fn runs without the machine lock
// held so it may wake goroutines that will observe SwitchPending.
func (m *StateMachine[S, Sub]) OnSwitchPending(fn func()) {
	m.mu.Lock()
	m.onSwitch = fn
	m.mu.Unlock()
}

// StartEvent admits a Type1 event when the current state is one of allowed and
// no switch is pending. With wait set it first blocks until the pending switch
// clears or ctx is done, then re-checks.
func (m *StateMachine[S, Sub]) StartEvent(ctx context.Context, wait bool, allowed ...S) Admission[S] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wait {
		for m.pending {
			if err := m.cond.WaitContext(ctx, -1); err != nil {
				break
			}
		}
	}
	if m.pending || !slices.Contains(allowed, m.state) {
		return Admission[S]{State: m.state, SwitchPending: m.pending}
	}
	m.active++
	return Admission[S]{OK: true, State: m.state}
}

// EndEvent ends a Type1 event admitted by StartEvent.
func (m *StateMachine[S, Sub]) EndEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == 0 {
		return
	}
	m.active--
	if m.active == 0 {
		m.cond.Broadcast()
	}
}

// StartStateSwitch admits a Type2 event when the current state is one of
// allowed and no other switch is pending. It returns once every Type1 event
// has ended, holding the switch until EndStateSwitch.
func (m *StateMachine[S, Sub]) StartStateSwitch(allowed ...S) (S, bool) {
	m.mu.Lock()
	return m.startSwitchLocked(allowed)
}

// AwaitStateSwitch is StartStateSwitch that first waits for another pending
// switch to clear, giving up when ctx is done.
func (m *StateMachine[S, Sub]) AwaitStateSwitch(ctx context.Context, allowed ...S) (S, bool) {
	m.mu.Lock()
	for m.pending {
		if err := m.cond.WaitContext(ctx, -1); err != nil {
			state := m.state
			m.mu.Unlock()
			return state, false
		}
	}
	return m.startSwitchLocked(allowed)
}

// startSwitchLocked is entered with m.mu held and returns with it released.
func (m *StateMachine[S, Sub]) startSwitchLocked(allowed []S) (S, bool) {
	if m.pending || !slices.Contains(allowed, m.state) {
		state := m.state
		m.mu.Unlock()
		return state, false
	}
	m.pending = true
	hook := m.onSwitch
	m.mu.Unlock()

	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for m.active > 0 {
		m.cond.Wait()
	}
	return m.state, true
}

// SwitchState replaces the state and sub-state. It is meant to be called while
// holding a switch.
func (m *StateMachine[S, Sub]) SwitchState(state S, sub Sub) {
	m.mu.Lock()
	m.state = state
	m.sub = sub
	m.mu.Unlock()
}

// EndStateSwitch releases the held switch and wakes blocked Type1 callers.
func (m *StateMachine[S, Sub]) EndStateSwitch() {
	m.mu.Lock()
	m.pending = false
	m.cond.Broadcast()
	m.mu.Unlock()
}

// State returns the current state.
func (m *StateMachine[S, Sub]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SubState returns the current sub-state.
func (m *StateMachine[S, Sub]) SubState() Sub {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub
}

// SetSubState changes the sub-state without a switch.
func (m *StateMachine[S, Sub]) SetSubState(sub Sub) {
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
}

// SwitchPending reports whether a Type2 event is pending or held.
func (m *StateMachine[S, Sub]) SwitchPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Active returns the number of admitted Type1 events.
func (m *StateMachine[S, Sub]) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

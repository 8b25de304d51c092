package gateway

import (
	"sync"
	"time"

	"quotagate/internal/notify"
)

// timerEntry tracks one named timer. generation changes on every schedule and
// cancel so a fire that lost a race with Cancel becomes a no-op.
type timerEntry struct {
	generation uint64
	running    bool
	scheduled  *time.Timer
	follow     *followUp
}

// followUp is a callback queued behind a running timer.
type followUp struct {
	delay time.Duration
	fn    func()
}

// TimerManager runs named, cancelable, exactly-once deferred callbacks. At
// most one timer per name is scheduled or running at a time.
type TimerManager struct {
	mu      sync.Mutex
	cond    *notify.Cond
	entries map[string]*timerEntry
}

// NewTimerManager returns an empty TimerManager.
func NewTimerManager() *TimerManager {
	m := &TimerManager{entries: make(map[string]*timerEntry)}
	m.cond = notify.NewCond(&m.mu)
	return m
}

// Reserve schedules fn to run after delay under name. It returns false and
// does nothing when a timer with that name is already scheduled or running.
func (m *TimerManager) Reserve(name string, delay time.Duration, fn func()) bool {
	if delay < 0 {
		delay = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entry(name)
	if entry.scheduled != nil {
		return false
	}
	m.scheduleLocked(name, entry, delay, fn)
	return true
}

// Follow is Reserve, except that while a callback under name is running it
// queues fn to be scheduled once that callback ends. It returns false when a
// timer is scheduled but not yet running or a follow-up is already queued.
func (m *TimerManager) Follow(name string, delay time.Duration, fn func()) bool {
	if delay < 0 {
		delay = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entry(name)
	switch {
	case entry.scheduled == nil:
		m.scheduleLocked(name, entry, delay, fn)
		return true
	case entry.running && entry.follow == nil:
		entry.follow = &followUp{delay: delay, fn: fn}
		return true
	default:
		return false
	}
}

// scheduleLocked arms fn under a new generation. Callers hold m.mu.
func (m *TimerManager) scheduleLocked(name string, entry *timerEntry, delay time.Duration, fn func()) {
	entry.generation++
	generation := entry.generation
	entry.scheduled = time.AfterFunc(delay, func() {
		if !m.Start(name, generation) {
			return
		}
		defer m.End(name)
		fn()
	})
}

// Start marks the timer running if generation is still current. A fired
// callback must call Start before doing any work and End when it finishes.
func (m *TimerManager) Start(name string, generation uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[name]
	if !ok || entry.generation != generation || entry.running || entry.scheduled == nil {
		return false
	}
	entry.running = true
	return true
}

// End clears the running timer under name, schedules a queued follow-up and
// wakes Cancel waiters.
func (m *TimerManager) End(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[name]
	if !ok || !entry.running {
		return
	}
	entry.running = false
	entry.scheduled = nil
	if next := entry.follow; next != nil {
		entry.follow = nil
		m.scheduleLocked(name, entry, next.delay, next.fn)
	}
	m.cond.Broadcast()
}

// Cancel stops the timer under name. Unscheduled names succeed immediately.
// A running callback makes Cancel fail unless wait is set, in which case it
// blocks until the callback ends; after a successful Cancel the callback has
// no further side effects and any queued follow-up is dropped.
func (m *TimerManager) Cancel(name string, wait bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[name]
	if !ok || entry.scheduled == nil {
		return true
	}
	if entry.running {
		if !wait {
			return false
		}
		entry.follow = nil
		for entry.running {
			m.cond.Wait()
		}
	}
	entry.follow = nil
	entry.generation++
	if entry.scheduled != nil {
		entry.scheduled.Stop()
		entry.scheduled = nil
	}
	return true
}

// CancelAll cancels every timer, waiting for running callbacks to end.
func (m *TimerManager) CancelAll() {
	m.mu.Lock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	m.mu.Unlock()
	for _, name := range names {
		m.Cancel(name, true)
	}
}

// Scheduled reports whether a timer under name is scheduled or running.
func (m *TimerManager) Scheduled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[name]
	return ok && entry.scheduled != nil
}

// Generation returns the current generation for name.
func (m *TimerManager) Generation(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[name]; ok {
		return entry.generation
	}
	return 0
}

// entry returns the entry for name, creating it. Callers hold m.mu.
func (m *TimerManager) entry(name string) *timerEntry {
	entry, ok := m.entries[name]
	if !ok {
		entry = &timerEntry{}
		m.entries[name] = entry
	}
	return entry
}

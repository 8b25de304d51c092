package stats

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps counters in process. It never expires anything.
type MemoryStore struct {
	mu       sync.Mutex
	counters Counters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: newCounters()}
}

func (s *MemoryStore) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.group(ev.Group)[ev.Field]++
	if ev.Group == GroupCalls && ev.Core >= 0 {
		core := s.counters.Cores[ev.Core]
		if core == nil {
			core = map[string]int64{}
			s.counters.Cores[ev.Core] = core
		}
		core[ev.Field]++
	}
	return nil
}

func (s *MemoryStore) Snapshot(context.Context) (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := newCounters()
	maps.Copy(out.Calls, s.counters.Calls)
	maps.Copy(out.Transitions, s.counters.Transitions)
	maps.Copy(out.Syncs, s.counters.Syncs)
	for core, fields := range s.counters.Cores {
		out.Cores[core] = maps.Clone(fields)
	}
	return out, nil
}

// Package stats keeps running outcome counters for a gateway, in memory or
// in Redis hashes shared between processes.
package stats

import (
	"context"
	"time"
)

// Group names a family of counters.
type Group string

const (
	GroupCalls       Group = "calls"
	GroupTransitions Group = "transitions"
	GroupSyncs       Group = "syncs"
)

// Event increments one counter. Core scopes call counters to a lease and is
// negative when the event has no core.
type Event struct {
	Group Group
	Field string
	Core  int
	At    time.Time
}

// Counters is a snapshot of every counter in a store.
type Counters struct {
	Calls       map[string]int64
	Cores       map[int]map[string]int64
	Transitions map[string]int64
	Syncs       map[string]int64
}

// Store records events and reads counters back.
type Store interface {
	Record(ctx context.Context, ev Event) error
	Snapshot(ctx context.Context) (Counters, error)
}

func newCounters() Counters {
	return Counters{
		Calls:       map[string]int64{},
		Cores:       map[int]map[string]int64{},
		Transitions: map[string]int64{},
		Syncs:       map[string]int64{},
	}
}

// group returns the map backing g.
func (c Counters) group(g Group) map[string]int64 {
	switch g {
	case GroupTransitions:
		return c.Transitions
	case GroupSyncs:
		return c.Syncs
	default:
		return c.Calls
	}
}

package gateway

import "time"

// CoreSnapshot is the lease of one Core.
type CoreSnapshot struct {
	Index    int `json:"index"`
	Capacity int `json:"capacity"`
	Left     int `json:"left"`
}

// Snapshot is a point-in-time view of the Admin.
type Snapshot struct {
	State         State            `json:"state"`
	SubState      SubState         `json:"sub_state"`
	SwitchPending bool             `json:"switch_pending"`
	Cores         []CoreSnapshot   `json:"cores"`
	SyncMiss      int              `json:"sync_miss"`
	LastSync      time.Time        `json:"last_sync"`
	Policy        map[string][]int `json:"policy"`
}

// Left returns the total of every Core's remaining tokens.
func (s Snapshot) Left() int {
	total := 0
	for _, c := range s.Cores {
		total += c.Left
	}
	return total
}

// Snapshot captures the current state, leases and policy counters.
func (a *Admin) Snapshot() Snapshot {
	snap := Snapshot{
		State:         a.sm.State(),
		SubState:      a.sm.SubState(),
		SwitchPending: a.sm.SwitchPending(),
		Policy:        a.policy.Counters(),
	}
	a.permMu.Lock()
	snap.Cores = make([]CoreSnapshot, 0, len(a.cores))
	for _, c := range a.cores {
		snap.Cores = append(snap.Cores, CoreSnapshot{Index: c.index, Capacity: c.capacity, Left: c.left})
	}
	a.permMu.Unlock()
	a.missMu.Lock()
	snap.SyncMiss = a.syncMiss
	snap.LastSync = a.lastSync
	a.missMu.Unlock()
	return snap
}

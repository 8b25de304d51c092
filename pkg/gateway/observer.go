package gateway

import "time"

// OutcomeKind classifies one upstream call.
type OutcomeKind string

const (
	OutcomeOK            OutcomeKind = "ok"
	OutcomeLimitExceeded OutcomeKind = "limit_exceeded"
	OutcomeStatus        OutcomeKind = "status"
	OutcomeTimeout       OutcomeKind = "timeout"
	OutcomeError         OutcomeKind = "error"
	OutcomeCanceled      OutcomeKind = "canceled"
)

// Outcome describes one upstream call made by a Core or a probe. Core is
// the index of the lease whose client made the call, for probes too.
type Outcome struct {
	Core    int
	Probe   bool
	Kind    OutcomeKind
	Code    string
	Err     string
	Latency time.Duration
	At      time.Time
}

// Transition describes an Admin state change.
type Transition struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

// SyncResult describes one finished resynchronization.
type SyncResult struct {
	OK       bool
	Probes   int
	Miss     int
	Drift    time.Duration
	Duration time.Duration
	At       time.Time
}

// Observer receives gateway events. Implementations must not block.
type Observer interface {
	// OnCall signals a finished upstream call.
	OnCall(outcome Outcome)
	// OnTransition signals an Admin state change.
	OnTransition(transition Transition)
	// OnSync signals the end of a resynchronization.
	OnSync(result SyncResult)
}

// Observers fans events out to every non-nil observer.
func Observers(observers ...Observer) Observer {
	kept := make(multiObserver, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			kept = append(kept, obs)
		}
	}
	return kept
}

type multiObserver []Observer

func (m multiObserver) OnCall(outcome Outcome) {
	for _, obs := range m {
		obs.OnCall(outcome)
	}
}

func (m multiObserver) OnTransition(transition Transition) {
	for _, obs := range m {
		obs.OnTransition(transition)
	}
}

func (m multiObserver) OnSync(result SyncResult) {
	for _, obs := range m {
		obs.OnSync(result)
	}
}

// nopObserver discards every event.
type nopObserver struct{}

func (nopObserver) OnCall(Outcome) {}
func (nopObserver) OnTransition(Transition) {}
func (nopObserver) OnSync(SyncResult) {}

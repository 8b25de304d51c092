package live

import (
	"time"

	"quotagate/pkg/gateway"
)

// EventKind identifies the type of live UI event.
type EventKind int

const (
	// EventBatchStart signals a submitted batch.
	EventBatchStart EventKind = iota
	// EventCall delivers a call status update.
	EventCall
	// EventGateway delivers a fresh gateway snapshot.
	EventGateway
	// EventBatchEnd signals that every call has a result.
	EventBatchEnd
)

// CallEventType is the lifecycle step of one call.
type CallEventType string

const (
	CallQueued      CallEventType = "queued"
	CallRunning     CallEventType = "running"
	CallOK          CallEventType = "ok"
	CallTimeout     CallEventType = "timeout"
	CallError       CallEventType = "error"
	CallUnavailable CallEventType = "unavailable"
)

// CallEvent is one step of one named call.
type CallEvent struct {
	Name    string
	Servant int
	Type    CallEventType
	Code    string
	Error   string
	At      time.Time
}

// Event carries a UI update payload.
type Event struct {
	Kind     EventKind
	BatchID  string
	Names    []string
	Call     CallEvent
	Snapshot gateway.Snapshot
}

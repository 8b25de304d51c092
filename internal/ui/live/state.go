package live

import (
	"time"

	"quotagate/pkg/gateway"
)

// CallRow holds UI state for a single call.
type CallRow struct {
	Index      int
	Name       string
	Servant    int
	Status     CallEventType
	StartedAt  time.Time
	FinishedAt time.Time
	Code       string
	Error      string
}

// StatusCounts aggregates counts by status bucket.
type StatusCounts struct {
	Queued      int
	Running     int
	Done        int
	OK          int
	Timeout     int
	Error       int
	Unavailable int
}

// State captures the live UI state for a batch.
type State struct {
	BatchID    string
	StartedAt  time.Time
	Finished   bool
	LastEvent  string
	Rows       []CallRow
	Counts     StatusCounts
	Gateway    gateway.Snapshot
	HasGateway bool
}

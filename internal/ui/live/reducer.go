package live

import (
	"fmt"
	"time"
)

// StartBatch resets the state for a new batch listing names in submit order.
func StartBatch(state State, batchID string, names []string, now time.Time) State {
	state.BatchID = batchID
	state.StartedAt = now
	state.Finished = false
	state.LastEvent = ""
	// Events can race ahead of the batch start; keep their progress.
	seen := make(map[string]CallRow, len(state.Rows))
	for _, row := range state.Rows {
		seen[row.Name] = row
	}
	state.Rows = make([]CallRow, len(names))
	for i, name := range names {
		row, ok := seen[name]
		if !ok {
			row = CallRow{Name: name, Servant: -1, Status: CallQueued}
		}
		row.Index = i
		state.Rows[i] = row
	}
	state.Counts = recount(state.Rows)
	return state
}

// Reduce applies a call event to the UI state.
func Reduce(state State, event CallEvent) State {
	index := rowIndex(state, event.Name)
	if index < 0 {
		state.Rows = append(state.Rows, CallRow{Index: len(state.Rows), Name: event.Name, Servant: -1, Status: CallQueued})
		index = len(state.Rows) - 1
	}
	row := state.Rows[index]
	if event.Servant >= 0 {
		row.Servant = event.Servant
	}
	switch event.Type {
	case CallQueued:
		row.Status = CallQueued
	case CallRunning:
		row.Status = CallRunning
		if row.StartedAt.IsZero() {
			row.StartedAt = event.At
		}
	default:
		row.Status = event.Type
		row.FinishedAt = event.At
		if row.StartedAt.IsZero() {
			row.StartedAt = event.At
		}
		row.Code = event.Code
		row.Error = event.Error
	}
	state.Rows[index] = row
	state.Counts = recount(state.Rows)
	if message := formatLastEvent(event); message != "" {
		state.LastEvent = message
	}
	return state
}

// rowIndex finds the row for name.
func rowIndex(state State, name string) int {
	for i, row := range state.Rows {
		if row.Name == name {
			return i
		}
	}
	return -1
}

// isTerminalStatus reports whether a status is final.
func isTerminalStatus(status CallEventType) bool {
	switch status {
	case CallOK, CallTimeout, CallError, CallUnavailable:
		return true
	default:
		return false
	}
}

// recount recomputes status counts for the current rows.
func recount(rows []CallRow) StatusCounts {
	var counts StatusCounts
	for _, row := range rows {
		if isTerminalStatus(row.Status) {
			counts.Done++
		}
		switch row.Status {
		case CallQueued:
			counts.Queued++
		case CallRunning:
			counts.Running++
		case CallOK:
			counts.OK++
		case CallTimeout:
			counts.Timeout++
		case CallError:
			counts.Error++
		case CallUnavailable:
			counts.Unavailable++
		}
	}
	return counts
}

// formatLastEvent creates a short footer message for the event.
func formatLastEvent(event CallEvent) string {
	switch event.Type {
	case CallTimeout:
		return fmt.Sprintf("%s timed out", event.Name)
	case CallError:
		if event.Error != "" {
			return fmt.Sprintf("%s failed: %s", event.Name, event.Error)
		}
		return fmt.Sprintf("%s failed", event.Name)
	case CallUnavailable:
		return fmt.Sprintf("%s rejected, upstream unavailable", event.Name)
	case CallOK:
		if event.Code != "" {
			return fmt.Sprintf("%s answered %s", event.Name, event.Code)
		}
		return fmt.Sprintf("%s answered", event.Name)
	}
	return ""
}

// formatDuration renders a rounded duration for display.
func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	return duration.Round(10 * time.Millisecond).String()
}

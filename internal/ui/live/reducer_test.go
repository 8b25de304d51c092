package live

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"quotagate/internal/testutil"
	"quotagate/pkg/fast"
	"quotagate/pkg/gateway"
)

// TestReduceCallLifecycle verifies core status transitions are recorded.
func TestReduceCallLifecycle(t *testing.T) {
	runWithTimeout(t, time.Second, func() {
		start := time.Now()
		state := StartBatch(State{}, "batch-1", []string{"a", "b"}, start)
		if state.Counts.Queued != 2 {
			t.Fatalf("expected 2 queued, got %d", state.Counts.Queued)
		}
		state = Reduce(state, event("a", CallQueued, 1, start))
		state = Reduce(state, event("a", CallRunning, 1, start))
		done := event("a", CallOK, -1, start.Add(150*time.Millisecond))
		done.Code = "200"
		state = Reduce(state, done)

		row := state.Rows[0]
		if row.Status != CallOK || row.Servant != 1 || row.Code != "200" {
			t.Fatalf("unexpected row %+v", row)
		}
		if row.FinishedAt.Sub(row.StartedAt) != 150*time.Millisecond {
			t.Fatalf("expected 150ms elapsed, got %s", row.FinishedAt.Sub(row.StartedAt))
		}
		if state.Counts.OK != 1 || state.Counts.Done != 1 || state.Counts.Queued != 1 {
			t.Fatalf("unexpected counts %+v", state.Counts)
		}
		if state.LastEvent != "a answered 200" {
			t.Fatalf("unexpected last event %q", state.LastEvent)
		}
	})
}

// TestReduceUnknownNameAppends verifies late names still get a row.
func TestReduceUnknownNameAppends(t *testing.T) {
	runWithTimeout(t, time.Second, func() {
		state := Reduce(State{}, event("late", CallRunning, 0, time.Now()))
		if len(state.Rows) != 1 || state.Rows[0].Name != "late" || state.Counts.Running != 1 {
			t.Fatalf("unexpected state %+v", state)
		}
	})
}

// TestStartBatchKeepsEarlyEvents verifies results posted before the batch
// start survive it.
func TestStartBatchKeepsEarlyEvents(t *testing.T) {
	now := time.Now()
	state := Reduce(State{}, event("b", CallOK, 2, now))
	state = StartBatch(state, "batch-2", []string{"a", "b"}, now)
	if len(state.Rows) != 2 || state.Rows[1].Name != "b" || state.Rows[1].Index != 1 {
		t.Fatalf("unexpected rows %+v", state.Rows)
	}
	if state.Rows[1].Status != CallOK || state.Rows[1].Servant != 2 {
		t.Fatalf("expected early result kept, got %+v", state.Rows[1])
	}
	if state.Counts.Queued != 1 || state.Counts.OK != 1 {
		t.Fatalf("unexpected counts %+v", state.Counts)
	}
}

// TestReduceTerminalErrors verifies failure statuses are counted and described.
func TestReduceTerminalErrors(t *testing.T) {
	runWithTimeout(t, time.Second, func() {
		state := StartBatch(State{}, "b", []string{"x", "y", "z"}, time.Now())
		failed := event("x", CallError, -1, time.Now())
		failed.Error = "boom"
		state = Reduce(state, failed)
		state = Reduce(state, event("y", CallTimeout, -1, time.Now()))
		state = Reduce(state, event("z", CallUnavailable, -1, time.Now()))
		if state.Counts.Error != 1 || state.Counts.Timeout != 1 || state.Counts.Unavailable != 1 || state.Counts.Done != 3 {
			t.Fatalf("unexpected counts %+v", state.Counts)
		}
		if state.Rows[0].Error != "boom" {
			t.Fatalf("expected error recorded, got %+v", state.Rows[0])
		}
	})
}

// TestCallEventFromResult verifies pool statuses map onto call events.
func TestCallEventFromResult(t *testing.T) {
	ok := CallEventFromResult("a", fast.Result{
		Status:   fast.StatusOK,
		Response: gateway.Response{Status: gateway.Status{Code: "200"}},
	}, time.Now())
	if ok.Type != CallOK || ok.Code != "200" {
		t.Fatalf("unexpected ok event %+v", ok)
	}
	unavailable := CallEventFromResult("b", fast.Result{Status: fast.StatusUnavailable, Err: gateway.ErrServiceUnavailable}, time.Now())
	if unavailable.Type != CallUnavailable || unavailable.Error == "" {
		t.Fatalf("unexpected unavailable event %+v", unavailable)
	}
	failed := CallEventFromResult("c", fast.Result{Status: fast.StatusError, Err: errors.New("x")}, time.Now())
	if failed.Type != CallError {
		t.Fatalf("unexpected error event %+v", failed)
	}
}

// TestFormatGateway verifies the snapshot header line.
func TestFormatGateway(t *testing.T) {
	snap := gateway.Snapshot{
		State:    gateway.StateOk,
		SubState: gateway.SubSynchronizing,
		Cores: []gateway.CoreSnapshot{
			{Index: 0, Capacity: 5, Left: 2},
			{Index: 1, Capacity: 5, Left: 0},
		},
		SyncMiss: 3,
		Policy:   map[string][]int{gateway.FamilyStatusCode: {2}, gateway.FamilyAPIError: {0}},
	}
	line := formatGateway(snap)
	for _, want := range []string{"ok/synchronizing", "Left: 2/10", "Miss: 3", "status_code[0]=2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "api_error") {
		t.Fatalf("zero counters should be hidden: %q", line)
	}
}

// event builds a CallEvent for testing.
func event(name string, kind CallEventType, servant int, when time.Time) CallEvent {
	return CallEvent{Name: name, Servant: servant, Type: kind, At: when}
}

// runWithTimeout executes a test body with a timeout.
func runWithTimeout(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	ctx := testutil.Context(t, timeout)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("test timed out")
	}
}

// TestLeaseBar verifies bars scale with tokens left and never hide a last token.
func TestLeaseBar(t *testing.T) {
	cases := []struct {
		left, capacity int
		want           string
	}{
		{5, 5, "#####"},
		{0, 5, "....."},
		{1, 10, "#...."},
		{6, 10, "###.."},
		{3, 0, "     "},
	}
	for _, tc := range cases {
		if got := leaseBar(tc.left, tc.capacity, 5); got != tc.want {
			t.Fatalf("leaseBar(%d, %d) = %q, want %q", tc.left, tc.capacity, got, tc.want)
		}
	}
	line := formatLeases([]gateway.CoreSnapshot{{Index: 0, Capacity: 2, Left: 2}, {Index: 1, Capacity: 2}})
	if line != "Leases: 0[#####] 1[.....]" {
		t.Fatalf("unexpected leases line %q", line)
	}
}

// TestModelQuitKey verifies q stops the UI and runs the quit hook.
func TestModelQuitKey(t *testing.T) {
	quit := false
	model := NewModel(nil, Options{NoColor: true, OnQuit: func() { quit = true }})
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !quit {
		t.Fatalf("expected quit hook to run")
	}
	if cmd == nil {
		t.Fatalf("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

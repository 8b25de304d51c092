package live

import (
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"quotagate/pkg/fast"
	"quotagate/pkg/gateway"
)

// Controller runs the live UI and implements fast.Observer.
type Controller struct {
	events  chan Event
	program *tea.Program
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Start launches a live UI controller that writes to stdout.
func Start(stdout io.Writer, opts Options) *Controller {
	if stdout == nil {
		stdout = os.Stdout
	}
	events := make(chan Event, 256)
	model := NewModel(events, opts)
	program := tea.NewProgram(model, tea.WithOutput(stdout), tea.WithAltScreen())
	controller := &Controller{
		events:  events,
		program: program,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(controller.done)
	}()
	return controller
}

// Close signals the UI to stop.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

// Wait blocks until the UI has exited.
func (c *Controller) Wait() {
	if c == nil {
		return
	}
	<-c.done
}

// OnBatchStart lists the calls of a submitted batch.
func (c *Controller) OnBatchStart(batchID string, names []string) {
	c.send(Event{Kind: EventBatchStart, BatchID: batchID, Names: names})
}

// OnQueued forwards queue placement to the UI.
func (c *Controller) OnQueued(batchID, name string, servant int) {
	c.send(Event{Kind: EventCall, BatchID: batchID, Call: CallEvent{Name: name, Servant: servant, Type: CallQueued, At: time.Now()}})
}

// OnServe forwards a servant picking a call up.
func (c *Controller) OnServe(batchID, name string, servant int) {
	c.send(Event{Kind: EventCall, BatchID: batchID, Call: CallEvent{Name: name, Servant: servant, Type: CallRunning, At: time.Now()}})
}

// OnResult forwards a posted result.
func (c *Controller) OnResult(batchID, name string, result fast.Result) {
	c.send(Event{Kind: EventCall, BatchID: batchID, Call: CallEventFromResult(name, result, time.Now())})
}

// OnSnapshot forwards a gateway snapshot.
func (c *Controller) OnSnapshot(snap gateway.Snapshot) {
	c.send(Event{Kind: EventGateway, Snapshot: snap})
}

// OnBatchEnd marks the batch finished. The UI stays up until Close.
func (c *Controller) OnBatchEnd(batchID string) {
	c.send(Event{Kind: EventBatchEnd, BatchID: batchID})
}

// CallEventFromResult maps a pool result onto a terminal call event.
func CallEventFromResult(name string, result fast.Result, at time.Time) CallEvent {
	event := CallEvent{Name: name, Servant: -1, At: at}
	switch result.Status {
	case fast.StatusOK:
		event.Type = CallOK
	case fast.StatusTimeout:
		event.Type = CallTimeout
	case fast.StatusUnavailable:
		event.Type = CallUnavailable
	default:
		event.Type = CallError
	}
	event.Code = result.Response.Status.Code
	if result.Err != nil {
		event.Error = result.Err.Error()
	}
	return event
}

// send enqueues an event without blocking the caller.
func (c *Controller) send(event Event) {
	if c == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
	}
}

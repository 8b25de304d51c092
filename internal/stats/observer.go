package stats

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"quotagate/pkg/gateway"
)

const (
	observerBuffer = 1024
	recordTimeout  = 2 * time.Second
)

// Fields of the syncs group.
const (
	SyncOK     = "ok"
	SyncFailed = "failed"
)

// Observer feeds gateway events into a Store from a background goroutine.
type Observer struct {
	store Store
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

// NewObserver starts forwarding events to store.
func NewObserver(store Store, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Observer{
		store:  store,
		log:    logger,
		events: make(chan Event, observerBuffer),
		done:   make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Observer) OnCall(outcome gateway.Outcome) {
	core := outcome.Core
	if outcome.Probe {
		core = -1
	}
	o.send(Event{Group: GroupCalls, Field: string(outcome.Kind), Core: core, At: outcome.At})
}

func (o *Observer) OnTransition(transition gateway.Transition) {
	field := transition.From.String() + "->" + transition.To.String()
	o.send(Event{Group: GroupTransitions, Field: field, Core: -1, At: transition.At})
}

func (o *Observer) OnSync(result gateway.SyncResult) {
	field := SyncFailed
	if result.OK {
		field = SyncOK
	}
	o.send(Event{Group: GroupSyncs, Field: field, Core: -1, At: result.At})
}

// Close flushes queued events and stops the forwarder.
func (o *Observer) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.events)
	o.mu.Unlock()
	<-o.done
}

func (o *Observer) send(ev Event) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return
	}
	select {
	case o.events <- ev:
	default:
		o.log.Debug("stats event dropped", zap.String("group", string(ev.Group)), zap.String("field", ev.Field))
	}
}

func (o *Observer) run() {
	defer close(o.done)
	for ev := range o.events {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := o.store.Record(ctx, ev); err != nil {
			o.log.Warn("stats record failed", zap.Error(err))
		}
		cancel()
	}
}

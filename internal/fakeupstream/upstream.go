// Package fakeupstream provides a scripted in-process upstream for gateway tests.
package fakeupstream

import (
	"context"
	"sync"
	"time"

	"quotagate/pkg/gateway"
)

// Reply scripts one upstream answer. A non-nil Err is returned instead of a
// response; Code defaults to 200.
type Reply struct {
	Code    string
	Err     error
	Delay   time.Duration
	Payload any
}

// OK is a 200 reply.
func OK() Reply { return Reply{Code: gateway.StatusOK} }

// Status is a reply with the given status code.
func Status(code string) Reply { return Reply{Code: code} }

// Timeout is a reply that fails with a client timeout.
func Timeout() Reply { return Reply{Err: gateway.ErrClientTimeout} }

// FakeClient is a gateway.Client that records its lifecycle.
type FakeClient struct {
	ID int

	mu     sync.Mutex
	opened bool
	closed bool
}

// Open marks the client open.
func (c *FakeClient) Open(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = true
	return nil
}

// Close marks the client closed.
func (c *FakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *FakeClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Upstream is a scripted fake upstream. Calls and probes consume their own
// scripts in order and fall back to a default reply once a script is empty.
type Upstream struct {
	mu           sync.Mutex
	calls        []Reply
	probes       []Reply
	callDefault  Reply
	probeDefault Reply
	callCount    int
	probeCount   int
	inFlight     map[int]int
	overlap      bool
	clients      []*FakeClient
}

// NewUpstream returns an Upstream that answers 200 to everything.
func NewUpstream() *Upstream {
	return &Upstream{
		callDefault:  OK(),
		probeDefault: OK(),
		inFlight:     map[int]int{},
	}
}

// Factory returns a ClientFactory producing numbered FakeClients.
func (u *Upstream) Factory() gateway.ClientFactory {
	return func() gateway.Client {
		u.mu.Lock()
		defer u.mu.Unlock()
		client := &FakeClient{ID: len(u.clients)}
		u.clients = append(u.clients, client)
		return client
	}
}

// Clients returns every client built by Factory.
func (u *Upstream) Clients() []*FakeClient {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]*FakeClient(nil), u.clients...)
}

// Method returns a gateway.Method answering from the call script.
func (u *Upstream) Method() gateway.Method {
	return func(ctx context.Context, client gateway.Client, args ...any) (gateway.Response, error) {
		return u.answer(ctx, client, false, args)
	}
}

// Probe returns a gateway.Method answering from the probe script.
func (u *Upstream) Probe() gateway.Method {
	return func(ctx context.Context, client gateway.Client, args ...any) (gateway.Response, error) {
		return u.answer(ctx, client, true, args)
	}
}

// PushCalls appends replies to the call script.
func (u *Upstream) PushCalls(replies ...Reply) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, replies...)
}

// PushProbes appends replies to the probe script.
func (u *Upstream) PushProbes(replies ...Reply) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.probes = append(u.probes, replies...)
}

// SetCallDefault sets the reply used once the call script is empty.
func (u *Upstream) SetCallDefault(reply Reply) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.callDefault = reply
}

// SetProbeDefault sets the reply used once the probe script is empty.
func (u *Upstream) SetProbeDefault(reply Reply) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.probeDefault = reply
}

// CallCount returns the number of calls answered.
func (u *Upstream) CallCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.callCount
}

// ProbeCount returns the number of probes answered.
func (u *Upstream) ProbeCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.probeCount
}

// Overlapped reports whether any client ever served two requests at once.
func (u *Upstream) Overlapped() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.overlap
}

// answer pops the next scripted reply and plays it.
func (u *Upstream) answer(ctx context.Context, client gateway.Client, probe bool, args []any) (gateway.Response, error) {
	id := -1
	if fake, ok := client.(*FakeClient); ok {
		id = fake.ID
	}
	u.mu.Lock()
	var reply Reply
	if probe {
		u.probeCount++
		reply, u.probes = pop(u.probes, u.probeDefault)
	} else {
		u.callCount++
		reply, u.calls = pop(u.calls, u.callDefault)
	}
	u.inFlight[id]++
	if u.inFlight[id] > 1 {
		u.overlap = true
	}
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.inFlight[id]--
		u.mu.Unlock()
	}()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return gateway.Response{}, ctx.Err()
		}
	}
	if reply.Err != nil {
		return gateway.Response{}, reply.Err
	}
	code := reply.Code
	if code == "" {
		code = gateway.StatusOK
	}
	payload := reply.Payload
	if payload == nil && len(args) > 0 {
		payload = args[0]
	}
	return gateway.Response{Status: gateway.Status{Code: code}, Payload: payload}, nil
}

// pop removes the head of script, or returns fallback when it is empty.
func pop(script []Reply, fallback Reply) (Reply, []Reply) {
	if len(script) == 0 {
		return fallback, script
	}
	return script[0], script[1:]
}

package fast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quotagate/internal/fakeupstream"
	"quotagate/internal/testutil"
	"quotagate/pkg/gateway"
)

// fakeGateway answers through the method passed to GetData and toggles
// availability on demand.
type fakeGateway struct {
	mu        sync.Mutex
	initErr   error
	inited    bool
	closed    bool
	down      bool
	calls     int
	pings     int
	checks    int
	callDelay time.Duration
}

func (g *fakeGateway) Init(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inited = g.initErr == nil
	return g.initErr
}

func (g *fakeGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func (g *fakeGateway) GetData(ctx context.Context, method gateway.Method, args ...any) (gateway.Response, error) {
	g.mu.Lock()
	g.calls++
	down, delay := g.down, g.callDelay
	g.mu.Unlock()
	if down {
		return gateway.Response{}, gateway.ErrServiceUnavailable
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return gateway.Response{}, errors.Join(gateway.ErrInternal, ctx.Err())
		}
	}
	return method(ctx, nil, args...)
}

func (g *fakeGateway) Ping(ctx context.Context) (gateway.Response, error) {
	g.mu.Lock()
	g.pings++
	g.mu.Unlock()
	return gateway.Response{Status: gateway.Status{Code: gateway.StatusOK}}, nil
}

func (g *fakeGateway) CheckServiceStatus(context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	return !g.down
}

func (g *fakeGateway) setDown(down bool) {
	g.mu.Lock()
	g.down = down
	g.mu.Unlock()
}

func (g *fakeGateway) stats() (calls, pings int, closed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls, g.pings, g.closed
}

// echoMethod answers 200 with its first argument as payload.
func echoMethod(_ context.Context, _ gateway.Client, args ...any) (gateway.Response, error) {
	resp := gateway.Response{Status: gateway.Status{Code: gateway.StatusOK}}
	if len(args) > 0 {
		resp.Payload = args[0]
	}
	return resp, nil
}

func startPool(t *testing.T, gw Gateway, cfg Config) *Pool {
	t.Helper()
	pool := New(gw, cfg)
	if err := pool.Start(testutil.Context(t, time.Second)); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close(context.Background()) })
	return pool
}

func TestPoolSubmitBeforeStart(t *testing.T) {
	pool := New(&fakeGateway{}, Config{})
	if _, err := pool.Submit(NewRequest()); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolStartPropagatesInitError(t *testing.T) {
	boom := errors.New("boom")
	pool := New(&fakeGateway{initErr: boom}, Config{})
	if err := pool.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected init error, got %v", err)
	}
	if _, err := pool.Submit(NewRequest()); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed after failed start, got %v", err)
	}
}

func TestPoolRunsBatch(t *testing.T) {
	gw := &fakeGateway{}
	pool := startPool(t, gw, Config{Servants: 3})

	req := NewRequest()
	for i := 0; i < 10; i++ {
		req.Add(echoMethod, i)
	}
	resp, err := pool.Submit(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !resp.Wait(testutil.Context(t, 2*time.Second)) {
		t.Fatalf("batch did not complete, %d remaining", resp.Remaining())
	}
	for i, name := range req.Names() {
		res, ok := resp.Get(name)
		if !ok || res.Status != StatusOK {
			t.Fatalf("call %s: unexpected result %+v", name, res)
		}
		if res.Response.Payload != i {
			t.Fatalf("call %s: expected payload %d, got %v", name, i, res.Response.Payload)
		}
	}
}

func TestPoolUnavailableShortCircuitsAndRecovers(t *testing.T) {
	gw := &fakeGateway{}
	gw.setDown(true)
	pool := startPool(t, gw, Config{Servants: 2, KeepAliveInterval: 10 * time.Millisecond})

	req := NewRequest()
	for i := 0; i < 4; i++ {
		req.Add(echoMethod, i)
	}
	resp, err := pool.Submit(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !resp.Wait(testutil.Context(t, 2*time.Second)) {
		t.Fatalf("batch did not complete")
	}
	for name, res := range resp.Unread() {
		if res.Status != StatusUnavailable || !errors.Is(res.Err, gateway.ErrServiceUnavailable) {
			t.Fatalf("call %s: expected unavailable, got %+v", name, res)
		}
	}
	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return pool.sm.State() == poolUnavailable
	}, "pool never became unavailable")

	gw.setDown(false)
	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return pool.sm.State() == poolOK
	}, "pool never recovered")

	req = NewRequest()
	name := req.Add(echoMethod, "after")
	resp, err = pool.Submit(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !resp.Wait(testutil.Context(t, time.Second)) {
		t.Fatalf("batch did not complete")
	}
	if res, _ := resp.Get(name); res.Status != StatusOK {
		t.Fatalf("expected ok after recovery, got %+v", res)
	}
}

func TestPoolKeepAlive(t *testing.T) {
	gw := &fakeGateway{}
	pool := startPool(t, gw, Config{Servants: 1, KeepAlive: true, KeepAliveInterval: 20 * time.Millisecond})

	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		_, pings, _ := gw.stats()
		return pings > 0
	}, "expected keep-alive ping")

	pool.SetKeepAlive(false)
	time.Sleep(10 * time.Millisecond)
	_, before, _ := gw.stats()
	time.Sleep(80 * time.Millisecond)
	if _, after, _ := gw.stats(); after != before {
		t.Fatalf("expected no pings with keep-alive off, got %d more", after-before)
	}
}

func TestPoolNoKeepAliveByDefault(t *testing.T) {
	gw := &fakeGateway{}
	startPool(t, gw, Config{Servants: 1, KeepAliveInterval: 10 * time.Millisecond})
	time.Sleep(60 * time.Millisecond)
	if _, pings, _ := gw.stats(); pings != 0 {
		t.Fatalf("expected no pings, got %d", pings)
	}
}

func TestPoolCloseDrainsQueue(t *testing.T) {
	gw := &fakeGateway{callDelay: 5 * time.Millisecond}
	pool := New(gw, Config{Servants: 2})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	req := NewRequest()
	for i := 0; i < 8; i++ {
		req.Add(echoMethod, i)
	}
	resp, err := pool.Submit(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := pool.Close(testutil.Context(t, 2*time.Second)); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !resp.Done() {
		t.Fatalf("expected queued calls to finish before close, %d remaining", resp.Remaining())
	}
	calls, _, closed := gw.stats()
	if calls != 8 || !closed {
		t.Fatalf("expected 8 calls and closed gateway, got calls=%d closed=%v", calls, closed)
	}
	if _, err := pool.Submit(NewRequest()); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolCloseTimeoutCancelsCalls(t *testing.T) {
	gw := &fakeGateway{callDelay: time.Hour}
	pool := New(gw, Config{Servants: 1})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	req := NewRequest()
	name := req.Add(echoMethod, 1)
	resp, err := pool.Submit(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := pool.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !resp.WaitTimeout(time.Second) {
		t.Fatalf("expected cancelled call to post a result")
	}
	if res, _ := resp.Get(name); res.Status != StatusError {
		t.Fatalf("expected error status, got %+v", res)
	}
	if _, _, closed := gw.stats(); closed {
		t.Fatalf("gateway must stay open after close timeout")
	}
}

func TestPoolOverAdmin(t *testing.T) {
	up := fakeupstream.NewUpstream()
	admin, err := gateway.New(gateway.Config{
		Quota:  gateway.Quota{Count: 50, Window: time.Second},
		Cores:  2,
		Policy: gateway.DefaultPolicyConfig(),
		Probe:  up.Probe(),
	}, up.Factory())
	if err != nil {
		t.Fatalf("new admin: %v", err)
	}
	pool := startPool(t, admin, Config{Servants: 3})

	req := NewRequest()
	for i := 0; i < 20; i++ {
		req.AddNamed(string(rune('a'+i)), up.Method(), i)
	}
	resp, err := pool.Submit(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !resp.Wait(testutil.Context(t, 2*time.Second)) {
		t.Fatalf("batch did not complete")
	}
	for i, name := range req.Names() {
		res, _ := resp.Get(name)
		if res.Status != StatusOK || res.Response.Payload != i {
			t.Fatalf("call %s: unexpected result %+v", name, res)
		}
	}
	if up.CallCount() != 20 {
		t.Fatalf("expected 20 upstream calls, got %d", up.CallCount())
	}
	if up.Overlapped() {
		t.Fatalf("a client served two calls at once")
	}
}

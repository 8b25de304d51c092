// Package fast fans named batches of upstream calls out to a fixed pool of
// servants and collects their results into a waitable Response.
package fast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quotagate/pkg/gateway"
)

const (
	defaultServants          = 5
	defaultKeepAliveInterval = 10 * time.Second
)

// ErrPoolClosed is returned when submitting to a pool that is not running.
var ErrPoolClosed = errors.New("fast: pool is closed")

// Gateway is the admission layer servants call through.
type Gateway interface {
	Init(ctx context.Context) error
	Close() error
	GetData(ctx context.Context, method gateway.Method, args ...any) (gateway.Response, error)
	Ping(ctx context.Context) (gateway.Response, error)
	CheckServiceStatus(ctx context.Context) bool
}

// Config sizes the pool.
type Config struct {
	Servants int
	// KeepAlive enables idle probe calls at most once per KeepAliveInterval.
	KeepAlive         bool
	KeepAliveInterval time.Duration
	// CallTimeout bounds each call; zero leaves it to the gateway.
	CallTimeout time.Duration
}

// poolState tracks whether servants pass calls to the gateway.
type poolState int

const (
	poolOK poolState = iota
	poolUnavailable
)

func (s poolState) String() string {
	if s == poolUnavailable {
		return "unavailable"
	}
	return "ok"
}

// Option customizes a Pool.
type Option func(*Pool)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.log = logger
		}
	}
}

// WithObserver sets the per-call observer.
func WithObserver(observer Observer) Option {
	return func(p *Pool) {
		if observer != nil {
			p.observer = observer
		}
	}
}

// Pool runs a fixed set of servants in front of a Gateway.
type Pool struct {
	gw       Gateway
	cfg      Config
	log      *zap.Logger
	observer Observer

	sm        *gateway.StateMachine[poolState, struct{}]
	keepAlive atomic.Bool
	// pace holds one token per keep-alive interval. Served calls spend it, so
	// an idle ping only happens after a full quiet interval.
	pace *rate.Limiter

	mu       sync.Mutex
	servants []*servant
	next     int
	started  bool
	closed   bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a stopped pool over gw.
func New(gw Gateway, cfg Config, opts ...Option) *Pool {
	if cfg.Servants <= 0 {
		cfg.Servants = defaultServants
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = defaultKeepAliveInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		gw:       gw,
		cfg:      cfg,
		log:      zap.NewNop(),
		observer: nopObserver{},
		sm:       gateway.NewStateMachine(poolOK, struct{}{}),
		pace:     rate.NewLimiter(rate.Every(cfg.KeepAliveInterval), 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	p.keepAlive.Store(cfg.KeepAlive)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start initializes the gateway and launches the servants.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("fast: pool already started")
	}
	if err := p.gw.Init(ctx); err != nil {
		return fmt.Errorf("init gateway: %w", err)
	}
	// The first quiet interval starts now.
	p.pace.Allow()
	p.servants = make([]*servant, p.cfg.Servants)
	for i := range p.servants {
		s := newServant(i, p)
		p.servants[i] = s
		p.wg.Add(1)
		go s.run()
	}
	p.started = true
	p.log.Info("pool started", zap.Int("servants", p.cfg.Servants), zap.Bool("keep_alive", p.keepAlive.Load()))
	return nil
}

// Submit queues every call of req round-robin across servants.
func (p *Pool) Submit(req *Request) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.closed {
		return nil, ErrPoolClosed
	}
	resp := newResponse(req.order)
	for _, name := range req.order {
		c := req.calls[name]
		s := p.servants[p.next]
		p.next = (p.next + 1) % len(p.servants)
		s.push(job{name: name, method: c.method, args: c.args, resp: resp})
		p.observer.OnQueued(resp.ID(), name, s.id)
	}
	return resp, nil
}

// SetKeepAlive turns idle probe calls on or off.
func (p *Pool) SetKeepAlive(enabled bool) {
	p.keepAlive.Store(enabled)
}

// Close lets servants finish queued calls, stops them and closes the
// gateway. When ctx ends first in-flight calls are cancelled and ctx.Err()
// is returned without closing the gateway.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, s := range p.servants {
		s.push(job{stop: true})
	}
	p.mu.Unlock()

	wait := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(wait)
	}()
	select {
	case <-wait:
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
	p.cancel()
	p.log.Info("pool stopped")
	return p.gw.Close()
}

// serve runs one call and posts its result.
func (p *Pool) serve(servant int, j job) {
	p.observer.OnServe(j.resp.ID(), j.name, servant)
	if !p.sm.StartEvent(p.ctx, false, poolOK).OK {
		p.post(j, Result{Status: StatusUnavailable, Err: gateway.ErrServiceUnavailable})
		return
	}
	ctx, cancel := p.callContext()
	resp, err := p.gw.GetData(ctx, j.method, j.args...)
	cancel()
	p.sm.EndEvent()
	p.pace.Allow()

	if errors.Is(err, gateway.ErrServiceUnavailable) {
		p.setState(poolUnavailable)
	}
	p.post(j, resultFor(resp, err))
}

// post delivers a result to the job's Response.
func (p *Pool) post(j job, res Result) {
	j.resp.post(j.name, res)
	p.observer.OnResult(j.resp.ID(), j.name, res)
}

// idle runs on the designated servant when its queue is empty.
func (p *Pool) idle() {
	if p.sm.State() == poolOK && p.keepAlive.Load() && p.pace.Allow() {
		ctx, cancel := p.callContext()
		_, err := p.gw.Ping(ctx)
		cancel()
		if err != nil {
			p.log.Debug("keep-alive ping failed", zap.Error(err))
		}
	}
	p.checkStatus()
}

// checkStatus asks the gateway for breaker recovery and mirrors the answer.
func (p *Pool) checkStatus() {
	if p.gw.CheckServiceStatus(p.ctx) {
		p.setState(poolOK)
		return
	}
	p.setState(poolUnavailable)
}

// setState moves the pool to state once in-flight calls drain.
func (p *Pool) setState(state poolState) {
	from := poolOK
	if state == poolOK {
		from = poolUnavailable
	}
	if _, ok := p.sm.StartStateSwitch(from); !ok {
		return
	}
	p.sm.SwitchState(state, struct{}{})
	p.sm.EndStateSwitch()
	p.log.Info("pool state changed", zap.Stringer("from", from), zap.Stringer("to", state))
}

// callContext derives the context for one gateway call.
func (p *Pool) callContext() (context.Context, context.CancelFunc) {
	if p.cfg.CallTimeout > 0 {
		return context.WithTimeout(p.ctx, p.cfg.CallTimeout)
	}
	return context.WithCancel(p.ctx)
}

// resultFor maps a gateway answer onto a Result.
func resultFor(resp gateway.Response, err error) Result {
	switch {
	case err == nil:
		return Result{Status: StatusOK, Response: resp}
	case errors.Is(err, gateway.ErrTimeout):
		return Result{Status: StatusTimeout, Err: err}
	case errors.Is(err, gateway.ErrServiceUnavailable):
		return Result{Status: StatusUnavailable, Err: err}
	default:
		return Result{Status: StatusError, Err: err}
	}
}

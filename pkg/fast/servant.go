package fast

import (
	"sync"
	"time"

	"quotagate/pkg/gateway"
)

// job is a queued call or a stop marker.
type job struct {
	stop   bool
	name   string
	method gateway.Method
	args   []any
	resp   *Response
}

// servant drains its own FIFO queue. Servant 0 also polls breaker recovery
// and sends keep-alive pings.
type servant struct {
	id   int
	pool *Pool

	mu    sync.Mutex
	queue []job
	wake  chan struct{}
}

func newServant(id int, pool *Pool) *servant {
	return &servant{id: id, pool: pool, wake: make(chan struct{}, 1)}
}

// push appends j and wakes the servant.
func (s *servant) push(j job) {
	s.mu.Lock()
	s.queue = append(s.queue, j)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pop removes the oldest job.
func (s *servant) pop() (job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return job{}, false
	}
	j := s.queue[0]
	s.queue[0] = job{}
	s.queue = s.queue[1:]
	return j, true
}

// run serves jobs until a stop marker arrives.
func (s *servant) run() {
	defer s.pool.wg.Done()
	interval := s.pool.cfg.KeepAliveInterval
	idle := time.NewTimer(interval)
	defer idle.Stop()

	served := 0
	for {
		if j, ok := s.pop(); ok {
			if j.stop {
				return
			}
			s.pool.serve(s.id, j)
			served++
			if s.id == 0 && served%2 == 0 {
				s.pool.checkStatus()
			}
			continue
		}
		if s.id == 0 {
			s.pool.idle()
		}
		resetTimer(idle, interval)
		select {
		case <-s.wake:
		case <-idle.C:
		}
	}
}

// resetTimer safely resets a timer, draining any pending tick.
func resetTimer(timer *time.Timer, interval time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(interval)
}

package fast

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	"quotagate/internal/notify"
	"quotagate/pkg/gateway"
)

// Status is the outcome class of one served call.
type Status int

const (
	// StatusOK means the upstream answered; its own status is in the Response.
	StatusOK Status = iota
	StatusTimeout
	StatusError
	StatusUnavailable
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusError:
		return "error"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is the posted answer for one name.
type Result struct {
	Status   Status
	Response gateway.Response
	Err      error
}

// Response collects the results of one Request as they arrive.
type Response struct {
	id string

	mu       sync.Mutex
	cond     *notify.Cond
	expected map[string]bool
	results  map[string]Result
	arrived  []string
	consumed map[string]bool
}

// newResponse returns an aggregate waiting for names.
func newResponse(names []string) *Response {
	r := &Response{
		id:       uuid.NewString(),
		expected: make(map[string]bool, len(names)),
		results:  make(map[string]Result, len(names)),
		consumed: make(map[string]bool, len(names)),
	}
	for _, name := range names {
		r.expected[name] = true
	}
	r.cond = notify.NewCond(&r.mu)
	return r
}

// ID identifies the batch.
func (r *Response) ID() string {
	return r.id
}

// Len returns the number of names in the batch.
func (r *Response) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expected)
}

// Remaining returns the number of names not yet answered.
func (r *Response) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expected) - len(r.results)
}

// Done reports whether every name has been answered.
func (r *Response) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doneLocked()
}

// Wait blocks until every name is answered or ctx is done. It reports
// whether the batch completed.
func (r *Response) Wait(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for !r.doneLocked() {
		if err := r.cond.WaitContext(ctx, -1); err != nil {
			return r.doneLocked()
		}
	}
	return true
}

// WaitTimeout is Wait bounded by d. A negative d waits without bound.
func (r *Response) WaitTimeout(d time.Duration) bool {
	if d < 0 {
		return r.Wait(context.Background())
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return r.Wait(ctx)
}

// Get returns the result for name and marks it consumed.
func (r *Response) Get(name string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[name]
	if ok {
		r.consumed[name] = true
	}
	return res, ok
}

// Next returns the oldest answered result not yet consumed.
func (r *Response) Next() (string, Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.arrived {
		if r.consumed[name] {
			continue
		}
		r.consumed[name] = true
		return name, r.results[name], true
	}
	return "", Result{}, false
}

// Unread yields every answered result not yet consumed, in arrival order.
func (r *Response) Unread() iter.Seq2[string, Result] {
	return func(yield func(string, Result) bool) {
		for {
			name, res, ok := r.Next()
			if !ok || !yield(name, res) {
				return
			}
		}
	}
}

// post records the result for name. Unknown and repeated names are ignored.
func (r *Response) post(name string, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.expected[name] {
		return
	}
	if _, dup := r.results[name]; dup {
		return
	}
	r.results[name] = res
	r.arrived = append(r.arrived, name)
	if r.doneLocked() {
		r.cond.Broadcast()
	}
}

func (r *Response) doneLocked() bool {
	return len(r.results) == len(r.expected)
}

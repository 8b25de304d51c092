package fast

import (
	"strconv"

	"quotagate/pkg/gateway"
)

// call is one named entry of a Request.
type call struct {
	method gateway.Method
	args   []any
}

// Request is a batch of named upstream calls submitted together.
type Request struct {
	calls   map[string]call
	order   []string
	counter int
}

// NewRequest returns an empty batch.
func NewRequest() *Request {
	return &Request{calls: make(map[string]call)}
}

// Add appends a call under the next free numeric name and returns the name.
func (r *Request) Add(method gateway.Method, args ...any) string {
	name := strconv.Itoa(r.counter)
	for r.has(name) {
		r.counter++
		name = strconv.Itoa(r.counter)
	}
	r.counter++
	r.AddNamed(name, method, args...)
	return name
}

// AddNamed adds a call under name, replacing any call already using it.
func (r *Request) AddNamed(name string, method gateway.Method, args ...any) {
	if !r.has(name) {
		r.order = append(r.order, name)
	}
	r.calls[name] = call{method: method, args: args}
}

// Len returns the number of calls.
func (r *Request) Len() int {
	return len(r.order)
}

// Names returns the call names in insertion order.
func (r *Request) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Request) has(name string) bool {
	_, ok := r.calls[name]
	return ok
}

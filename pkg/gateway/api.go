package gateway

import (
	"context"
	"errors"
	"net"
)

// Status codes the gateway distinguishes.
const (
	StatusOK                 = "200"
	StatusBadRequest         = "400"
	StatusUnauthorized       = "401"
	StatusNotFound           = "404"
	StatusLimitExceeded      = "429"
	StatusInternalError      = "500"
	StatusServiceUnavailable = "503"
)

// Status is the upstream status code and message of one call.
type Status struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Response is the envelope returned by a Method. Payload is never inspected.
type Response struct {
	Status  Status `json:"status"`
	Payload any    `json:"payload,omitempty"`
}

// OK reports whether the upstream answered with StatusOK.
func (r Response) OK() bool {
	return r.Status.Code == StatusOK
}

// Client is one upstream client instance. Each Core owns exactly one and
// never uses it from two goroutines at once.
type Client interface {
	Open(ctx context.Context) error
	Close() error
}

// ClientFactory builds a fresh Client for a Core.
type ClientFactory func() Client

// Method performs one upstream call on client. A Method returns
// ErrClientTimeout (or any error that reports a timeout) when the upstream
// did not answer in time; every other error counts as a general failure.
type Method func(ctx context.Context, client Client, args ...any) (Response, error)

// ErrClientTimeout is returned by a Method whose upstream call timed out.
var ErrClientTimeout = errors.New("upstream client timeout")

// isTimeout reports whether err is a collaborator timeout.
func isTimeout(err error) bool {
	if errors.Is(err, ErrClientTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

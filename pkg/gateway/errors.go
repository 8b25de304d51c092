package gateway

import "errors"

var (
	// ErrInvalidUse is returned when the Admin is not initialized.
	ErrInvalidUse = errors.New("gateway: admin is not initialized")
	// ErrServiceUnavailable is returned while the breaker is open or opening.
	ErrServiceUnavailable = errors.New("gateway: service unavailable")
	// ErrPermissionFail is returned when a quota wait is aborted by a state switch.
	ErrPermissionFail = errors.New("gateway: permission wait aborted")
	// ErrTimeout wraps an upstream timeout.
	ErrTimeout = errors.New("gateway: upstream timeout")
	// ErrInternal wraps any other collaborator error.
	ErrInternal = errors.New("gateway: upstream error")
	// ErrInvalidConfig is returned by New for unusable configuration.
	ErrInvalidConfig = errors.New("gateway: invalid config")
)

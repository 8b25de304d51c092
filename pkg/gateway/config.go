package gateway

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSyncPollInterval = 50 * time.Millisecond

	timerSynchronize = "synchronize"
	timerReset       = "reset"
	timerUnavailable = "service_unavailable"
)

// Quota is the upstream allowance: Count calls per Window.
type Quota struct {
	Count  int
	Window time.Duration
}

// Config configures an Admin.
type Config struct {
	Quota Quota
	// Cores is the number of quota leases. Each gets Count/Cores calls, the
	// remainder going to the first cores.
	Cores  int
	Policy PolicyConfig
	// Probe is the lightweight call used to resynchronize, check recovery and
	// keep the connection alive.
	Probe Method
	// SyncPollInterval spaces probes that keep answering limit exceeded.
	SyncPollInterval time.Duration
}

// validate rejects configurations that could never admit a call.
func (c Config) validate() error {
	switch {
	case c.Quota.Count < 1:
		return fmt.Errorf("%w: quota count must be >= 1", ErrInvalidConfig)
	case c.Quota.Window <= 0:
		return fmt.Errorf("%w: quota window must be > 0", ErrInvalidConfig)
	case c.Cores < 1:
		return fmt.Errorf("%w: cores must be >= 1", ErrInvalidConfig)
	case c.Cores > c.Quota.Count:
		return fmt.Errorf("%w: cores (%d) exceed quota count (%d)", ErrInvalidConfig, c.Cores, c.Quota.Count)
	case c.Probe == nil:
		return fmt.Errorf("%w: probe method is required", ErrInvalidConfig)
	}
	for _, rule := range append(append([]RunRule{}, c.Policy.StatusRuns...), c.Policy.ErrorRuns...) {
		if rule.Threshold < 1 {
			return fmt.Errorf("%w: run threshold must be >= 1", ErrInvalidConfig)
		}
	}
	return nil
}

// Option customizes an Admin.
type Option func(*Admin)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Admin) {
		if logger != nil {
			a.log = logger
		}
	}
}

// WithObserver sets the event observer.
func WithObserver(observer Observer) Option {
	return func(a *Admin) {
		if observer != nil {
			a.observer = observer
		}
	}
}

// WithClock replaces time.Now, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Admin) {
		if now != nil {
			a.now = now
		}
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"quotagate/internal/config"
	"quotagate/internal/journal"
	"quotagate/internal/logging"
	"quotagate/internal/spec"
	"quotagate/internal/stats"
	"quotagate/pkg/gateway"
	"quotagate/pkg/gateway/httpapi"
)

// runtime bundles the gateway and the sinks observing it.
type runtime struct {
	admin   *gateway.Admin
	journal *journal.Journal
	stats   *stats.Observer
	store   stats.Store
	closers []func() error
}

// loadConfig resolves and loads the config file named by path.
func loadConfig(path string) (spec.Config, error) {
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return spec.Config{}, err
	}
	return config.Load(resolved)
}

// newLogger builds the command logger on stderr.
func newLogger(cfg spec.Config, verbose bool, stderr io.Writer) (*zap.Logger, error) {
	return logging.New(logging.FromConfig(cfg.Log, verbose), stderr)
}

// buildRuntime opens the configured sinks and constructs an uninitialized
// gateway wired to them.
func buildRuntime(ctx context.Context, cfg spec.Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{}
	var observers []gateway.Observer

	if cfg.Journal.Path != "" {
		j, err := journal.Open(ctx, cfg.Journal.Path, journal.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		rt.journal = j
		rt.closers = append(rt.closers, j.Close)
		observers = append(observers, j)
		logger.Debug("journal opened", zap.String("path", cfg.Journal.Path), zap.String("session", j.Session()))
	}

	var store stats.Store = stats.NewMemoryStore()
	if cfg.Stats.RedisAddr != "" {
		rdb, err := stats.DialRedis(ctx, cfg.Stats.RedisAddr)
		if err != nil {
			_ = rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, rdb.Close)
		store = stats.NewRedisStore(rdb, stats.WithPrefix(cfg.Stats.Prefix), stats.WithTTL(cfg.Stats.TTL))
	}
	rt.store = store
	rt.stats = stats.NewObserver(store, logger)
	rt.closers = append(rt.closers, func() error {
		rt.stats.Close()
		return nil
	})
	observers = append(observers, rt.stats)

	probe := httpapi.Get(cfg.Upstream.ProbePath)
	admin, err := gateway.New(
		config.GatewayConfig(cfg, probe),
		httpapi.Factory(config.HTTPOptions(cfg)),
		gateway.WithLogger(logger),
		gateway.WithObserver(gateway.Observers(observers...)),
	)
	if err != nil {
		_ = rt.close()
		return nil, err
	}
	rt.admin = admin
	return rt, nil
}

// counters drains pending stats events and reads the store back.
func (rt *runtime) counters(ctx context.Context) (stats.Counters, error) {
	rt.stats.Close()
	return rt.store.Snapshot(ctx)
}

// close releases sinks in reverse order of opening.
func (rt *runtime) close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close runtime: %w", errors.Join(errs...))
	}
	return nil
}

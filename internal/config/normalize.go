package config

import (
	"time"

	"quotagate/internal/spec"
	"quotagate/pkg/gateway"
)

const (
	DefaultQuotaCount        = 10
	DefaultQuotaWindow       = 10 * time.Second
	DefaultCores             = 10
	DefaultServants          = 5
	DefaultKeepAliveInterval = 10 * time.Second
	DefaultUpstreamTimeout   = 4 * time.Second
	DefaultProbePath         = "/"
	DefaultStatsPrefix       = "quotagate"
	DefaultStatsTTL          = 24 * time.Hour
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
)

// Normalize fills unset fields with defaults.
func Normalize(cfg *spec.Config) {
	if cfg.Quota.Count == 0 {
		cfg.Quota.Count = DefaultQuotaCount
	}
	if cfg.Quota.Window == 0 {
		cfg.Quota.Window = DefaultQuotaWindow
	}
	if cfg.Cores == 0 {
		cfg.Cores = min(DefaultCores, cfg.Quota.Count)
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.ProbePath == "" {
		cfg.Upstream.ProbePath = DefaultProbePath
	}
	if cfg.Pool.Servants == 0 {
		cfg.Pool.Servants = DefaultServants
	}
	if cfg.Pool.KeepAliveInterval == 0 {
		cfg.Pool.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cfg.Stats.Prefix == "" {
		cfg.Stats.Prefix = DefaultStatsPrefix
	}
	if cfg.Stats.TTL == 0 {
		cfg.Stats.TTL = DefaultStatsTTL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	policy := &cfg.Policy
	if policy.Critical == nil && policy.StatusRuns == nil && policy.ErrorRuns == nil {
		defaults := gateway.DefaultPolicyConfig()
		policy.Critical = defaults.Critical
		policy.StatusRuns = runsFromRules(defaults.StatusRuns)
		policy.ErrorRuns = runsFromRules(defaults.ErrorRuns)
	}
}

func runsFromRules(rules []gateway.RunRule) []spec.RunConfig {
	runs := make([]spec.RunConfig, 0, len(rules))
	for _, rule := range rules {
		runs = append(runs, spec.RunConfig{
			Keys:      append([]string(nil), rule.Keys...),
			Threshold: rule.Threshold,
		})
	}
	return runs
}

package config

import (
	"quotagate/internal/spec"
	"quotagate/pkg/fast"
	"quotagate/pkg/gateway"
	"quotagate/pkg/gateway/httpapi"
)

// GatewayConfig builds the Admin configuration using probe as the
// resynchronization and recovery call.
func GatewayConfig(cfg spec.Config, probe gateway.Method) gateway.Config {
	return gateway.Config{
		Quota: gateway.Quota{Count: cfg.Quota.Count, Window: cfg.Quota.Window},
		Cores: cfg.Cores,
		Policy: gateway.PolicyConfig{
			Critical:   append([]string(nil), cfg.Policy.Critical...),
			StatusRuns: rulesFromRuns(cfg.Policy.StatusRuns),
			ErrorRuns:  rulesFromRuns(cfg.Policy.ErrorRuns),
		},
		Probe: probe,
	}
}

// PoolConfig builds the worker pool configuration.
func PoolConfig(cfg spec.Config) fast.Config {
	return fast.Config{
		Servants:          cfg.Pool.Servants,
		KeepAlive:         cfg.Pool.KeepAlive,
		KeepAliveInterval: cfg.Pool.KeepAliveInterval,
		CallTimeout:       cfg.Pool.CallTimeout,
	}
}

// HTTPOptions builds the upstream client options.
func HTTPOptions(cfg spec.Config) httpapi.Options {
	return httpapi.Options{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
		Headers: cfg.Upstream.Headers,
	}
}

func rulesFromRuns(runs []spec.RunConfig) []gateway.RunRule {
	rules := make([]gateway.RunRule, 0, len(runs))
	for _, run := range runs {
		rules = append(rules, gateway.RunRule{
			Keys:      append([]string(nil), run.Keys...),
			Threshold: run.Threshold,
		})
	}
	return rules
}

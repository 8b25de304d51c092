package config

import (
	"fmt"
	"net/url"
	"strings"

	"quotagate/internal/spec"
	"quotagate/pkg/gateway"
)

// Validate checks a normalized config for correctness.
func Validate(cfg *spec.Config) error {
	collector := newIssueCollector("config")
	add := collector.add

	validateUpstream(cfg.Upstream, add)
	validateQuota(cfg, add)
	validatePolicy(cfg.Policy, add)
	validatePool(cfg.Pool, add)
	validateOutputs(cfg, add)

	return collector.result()
}

// ValidateBatch checks batch entries for paths and duplicate names.
func ValidateBatch(batch *spec.Batch) error {
	collector := newIssueCollector("batch")
	if len(batch.Requests) == 0 {
		collector.add("requests", "at least one request is required")
	}
	names := map[string]struct{}{}
	for i, req := range batch.Requests {
		add := collector.at("requests", i)
		if !strings.HasPrefix(req.Path, "/") {
			add("path", "must start with /")
		}
		if got, want := len(req.Args), strings.Count(req.Path, "{}"); got != want {
			add("args", fmt.Sprintf("path has %d placeholders but %d args", want, got))
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			continue
		}
		if _, exists := names[name]; exists {
			add("name", fmt.Sprintf("duplicate name %q", name))
			continue
		}
		names[name] = struct{}{}
	}
	return collector.result()
}

func validateUpstream(upstream spec.UpstreamConfig, add issueAdder) {
	baseURL := strings.TrimSpace(upstream.BaseURL)
	if baseURL == "" {
		add("upstream.base_url", "is required")
	} else if parsed, err := url.Parse(baseURL); err != nil || parsed.Host == "" {
		add("upstream.base_url", fmt.Sprintf("invalid url %q", upstream.BaseURL))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		add("upstream.base_url", fmt.Sprintf("unsupported scheme %q", parsed.Scheme))
	}
	if upstream.Timeout < 0 {
		add("upstream.timeout", "must be > 0")
	}
	if !strings.HasPrefix(upstream.ProbePath, "/") {
		add("upstream.probe_path", "must start with /")
	}
}

func validateQuota(cfg *spec.Config, add issueAdder) {
	if cfg.Quota.Count < 1 {
		add("quota.count", "must be >= 1")
	}
	if cfg.Quota.Window <= 0 {
		add("quota.window", "must be > 0")
	}
	switch {
	case cfg.Cores < 1:
		add("cores", "must be >= 1")
	case cfg.Quota.Count >= 1 && cfg.Cores > cfg.Quota.Count:
		add("cores", fmt.Sprintf("must not exceed quota.count (%d)", cfg.Quota.Count))
	}
}

func validatePolicy(policy spec.PolicyConfig, add issueAdder) {
	for i, code := range policy.Critical {
		if strings.TrimSpace(code) == "" {
			add(fmt.Sprintf("policy.critical[%d]", i), "is required")
		}
	}
	validateRuns("policy.status_runs", policy.StatusRuns, nil, add)
	validateRuns("policy.error_runs", policy.ErrorRuns, []string{gateway.KeyTimeout, gateway.KeyError}, add)
}

// validateRuns checks run rules; allowed restricts keys when non-empty.
func validateRuns(field string, runs []spec.RunConfig, allowed []string, add issueAdder) {
	for i, run := range runs {
		fieldPrefix := fmt.Sprintf("%s[%d]", field, i)
		if run.Threshold < 1 {
			add(fieldPrefix+".threshold", "must be >= 1")
		}
		if len(run.Keys) == 0 {
			add(fieldPrefix+".keys", "must include at least one entry")
		}
		for keyIndex, key := range run.Keys {
			keyField := fmt.Sprintf("%s.keys[%d]", fieldPrefix, keyIndex)
			switch {
			case strings.TrimSpace(key) == "":
				add(keyField, "is required")
			case len(allowed) > 0 && !contains(allowed, key):
				add(keyField, fmt.Sprintf("unsupported key %q (expected %s)", key, strings.Join(allowed, " or ")))
			}
		}
	}
}

func validatePool(pool spec.PoolConfig, add issueAdder) {
	if pool.Servants < 1 {
		add("pool.servants", "must be >= 1")
	}
	if pool.KeepAliveInterval <= 0 {
		add("pool.keep_alive_interval", "must be > 0")
	}
	if pool.CallTimeout < 0 {
		add("pool.call_timeout", "must be >= 0")
	}
}

func validateOutputs(cfg *spec.Config, add issueAdder) {
	if cfg.Stats.TTL < 0 {
		add("stats.ttl", "must be >= 0")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", fmt.Sprintf("unsupported level %q", cfg.Log.Level))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "console", "json":
	default:
		add("log.format", fmt.Sprintf("unsupported format %q", cfg.Log.Format))
	}
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

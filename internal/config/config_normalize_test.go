package config

import (
	"testing"
	"time"

	"quotagate/internal/spec"
)

// TestNormalizeFillsDefaults verifies an empty config gets the documented defaults.
func TestNormalizeFillsDefaults(t *testing.T) {
	var cfg spec.Config
	Normalize(&cfg)

	if cfg.Quota.Count != 10 || cfg.Quota.Window != 10*time.Second {
		t.Fatalf("unexpected quota %+v", cfg.Quota)
	}
	if cfg.Cores != 10 || cfg.Pool.Servants != 5 {
		t.Fatalf("unexpected sizing cores=%d servants=%d", cfg.Cores, cfg.Pool.Servants)
	}
	if cfg.Upstream.Timeout != 4*time.Second || cfg.Pool.KeepAliveInterval != 10*time.Second {
		t.Fatalf("unexpected timings %+v %+v", cfg.Upstream, cfg.Pool)
	}
	if len(cfg.Policy.Critical) != 1 || cfg.Policy.Critical[0] != "401" {
		t.Fatalf("unexpected critical codes %v", cfg.Policy.Critical)
	}
	if len(cfg.Policy.StatusRuns) != 1 || cfg.Policy.StatusRuns[0].Threshold != 3 {
		t.Fatalf("unexpected status runs %+v", cfg.Policy.StatusRuns)
	}
	if len(cfg.Policy.ErrorRuns) != 1 || len(cfg.Policy.ErrorRuns[0].Keys) != 2 {
		t.Fatalf("unexpected error runs %+v", cfg.Policy.ErrorRuns)
	}
}

// TestNormalizeCapsCoresToQuota verifies the default core count never exceeds the quota.
func TestNormalizeCapsCoresToQuota(t *testing.T) {
	cfg := spec.Config{Quota: spec.QuotaConfig{Count: 3}}
	Normalize(&cfg)
	if cfg.Cores != 3 {
		t.Fatalf("expected 3 cores, got %d", cfg.Cores)
	}
}

// TestNormalizeKeepsExplicitPolicy verifies a partial policy is not overwritten.
func TestNormalizeKeepsExplicitPolicy(t *testing.T) {
	cfg := spec.Config{Policy: spec.PolicyConfig{Critical: []string{"403"}}}
	Normalize(&cfg)
	if len(cfg.Policy.Critical) != 1 || cfg.Policy.Critical[0] != "403" {
		t.Fatalf("expected explicit critical codes, got %v", cfg.Policy.Critical)
	}
	if cfg.Policy.StatusRuns != nil || cfg.Policy.ErrorRuns != nil {
		t.Fatalf("expected runs to stay empty, got %+v", cfg.Policy)
	}
}

package spec

import (
	"testing"
	"time"
)

// TestParseConfigValid verifies valid config parsing succeeds.
func TestParseConfigValid(t *testing.T) {
	data := []byte(`upstream:
  base_url: "https://api.example.com"
  timeout: 2s
  headers:
    Authorization: "Bearer token"
  probe_path: /status
quota:
  count: 20
  window: 10s
cores: 4
policy:
  critical: ["401", "403"]
  status_runs:
    - keys: ["500", "503"]
      threshold: 2
pool:
  servants: 3
  keep_alive: true
  keep_alive_interval: 5s
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}
	if cfg.Upstream.Timeout != 2*time.Second || cfg.Quota.Window != 10*time.Second {
		t.Fatalf("unexpected durations: timeout=%s window=%s", cfg.Upstream.Timeout, cfg.Quota.Window)
	}
	if cfg.Cores != 4 || cfg.Pool.Servants != 3 || !cfg.Pool.KeepAlive {
		t.Fatalf("unexpected sizing %+v %+v", cfg.Cores, cfg.Pool)
	}
	if len(cfg.Policy.StatusRuns) != 1 || cfg.Policy.StatusRuns[0].Threshold != 2 {
		t.Fatalf("unexpected policy %+v", cfg.Policy)
	}
	if cfg.Upstream.Headers["Authorization"] != "Bearer token" {
		t.Fatalf("expected header, got %v", cfg.Upstream.Headers)
	}
}

// TestParseConfigUnknownField verifies unknown fields are rejected.
func TestParseConfigUnknownField(t *testing.T) {
	data := []byte(`quota:
  count: 10
unknown: true
`)
	if _, err := ParseConfig(data); err == nil {
		t.Fatalf("expected parse error for unknown field")
	}
}

// TestParseConfigRejectsMultipleDocs verifies multiple YAML docs are rejected.
func TestParseConfigRejectsMultipleDocs(t *testing.T) {
	data := []byte("cores: 1\n---\ncores: 2\n")
	if _, err := ParseConfig(data); err == nil {
		t.Fatalf("expected parse error for multiple documents")
	}
}

// TestParseBatch verifies batch entries decode in order.
func TestParseBatch(t *testing.T) {
	data := []byte(`requests:
  - name: alice
    path: /users/{}
    args: ["alice"]
  - path: /health
`)
	batch, err := ParseBatch(data)
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}
	if len(batch.Requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(batch.Requests))
	}
	if batch.Requests[0].Name != "alice" || batch.Requests[0].Args[0] != "alice" {
		t.Fatalf("unexpected first request %+v", batch.Requests[0])
	}
	if batch.Requests[1].Name != "" || batch.Requests[1].Path != "/health" {
		t.Fatalf("unexpected second request %+v", batch.Requests[1])
	}
}

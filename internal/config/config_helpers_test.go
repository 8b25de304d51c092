package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"quotagate/internal/spec"
)

// validConfig returns a normalized config used by validation tests.
func validConfig() spec.Config {
	cfg := spec.Config{
		Upstream: spec.UpstreamConfig{BaseURL: "https://api.example.com"},
		Quota:    spec.QuotaConfig{Count: 20, Window: 10 * time.Second},
		Cores:    4,
	}
	Normalize(&cfg)
	return cfg
}

func writeFile(t *testing.T, dir, name, payload string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

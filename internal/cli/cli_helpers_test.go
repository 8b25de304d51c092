package cli

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// writeTestFile writes payload under dir and returns its path.
func writeTestFile(t *testing.T, dir, name, payload string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// writeConfig writes a config pointing at baseURL plus any extra YAML.
func writeConfig(t *testing.T, dir, baseURL, extra string) string {
	t.Helper()
	body := fmt.Sprintf(`upstream:
  base_url: %q
  timeout: 2s
  probe_path: /status
quota:
  count: 20
  window: 10s
cores: 2
pool:
  servants: 2
log:
  level: warn
%s`, baseURL, extra)
	return writeTestFile(t, dir, filepath.Join(".quotagate", "config.yml"), body)
}

// testUpstream answers every GET with a small JSON body.
type testUpstream struct {
	server *httptest.Server
	hits   atomic.Int64
	status atomic.Int64
}

func newTestUpstream(t *testing.T) *testUpstream {
	t.Helper()
	u := &testUpstream{}
	u.status.Store(http.StatusOK)
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(u.status.Load()))
		fmt.Fprintf(w, `{"path":%q}`, strings.TrimPrefix(r.URL.Path, "/"))
	}))
	t.Cleanup(u.server.Close)
	return u
}

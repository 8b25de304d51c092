package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quotagate/pkg/gateway"
)

// openClient opens a Client against baseURL or fails the test.
func openClient(t *testing.T, opts Options) *Client {
	t.Helper()
	client := New(opts)
	if err := client.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// TestGetMapsStatusAndPayload verifies status codes and JSON bodies pass through.
func TestGetMapsStatusAndPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/summoners/by-name/a%20b" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"a b"}`))
	}))
	t.Cleanup(server.Close)

	client := openClient(t, Options{BaseURL: server.URL + "/", Headers: map[string]string{"X-Token": "secret"}})
	resp, err := Get("/summoners/by-name/{}")(context.Background(), client, "a b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.Status.Code != gateway.StatusOK {
		t.Fatalf("expected 200, got %s", resp.Status.Code)
	}
	raw, ok := resp.Payload.(json.RawMessage)
	if !ok || string(raw) != `{"name":"a b"}` {
		t.Fatalf("unexpected payload %#v", resp.Payload)
	}
}

// TestGetReturnsLimitExceeded verifies 429 is a status, not an error.
func TestGetReturnsLimitExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client := openClient(t, Options{BaseURL: server.URL})
	resp, err := Get("/status")(context.Background(), client)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.Status.Code != gateway.StatusLimitExceeded {
		t.Fatalf("expected 429, got %s", resp.Status.Code)
	}
	if resp.Payload != nil {
		t.Fatalf("expected empty payload, got %#v", resp.Payload)
	}
}

// TestGetTimeout verifies slow upstreams surface as client timeouts.
func TestGetTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client := openClient(t, Options{BaseURL: server.URL, Timeout: 30 * time.Millisecond})
	_, err := Get("/slow")(context.Background(), client)
	if !errors.Is(err, gateway.ErrClientTimeout) {
		t.Fatalf("expected ErrClientTimeout, got %v", err)
	}
}

// TestOpenRejectsBadScheme verifies the base URL is validated.
func TestOpenRejectsBadScheme(t *testing.T) {
	if err := New(Options{BaseURL: "ftp://example"}).Open(context.Background()); err == nil {
		t.Fatalf("expected open to fail")
	}
}

// TestExpandPath covers placeholder substitution.
func TestExpandPath(t *testing.T) {
	tests := []struct {
		path    string
		args    []any
		want    string
		wantErr bool
	}{
		{path: "/a/{}/b/{}", args: []any{"x", 2}, want: "/a/x/b/2"},
		{path: "/plain", want: "/plain"},
		{path: "/a/{}", wantErr: true},
		{path: "/a", args: []any{"x"}, wantErr: true},
	}
	for _, tc := range tests {
		got, err := expandPath(tc.path, tc.args)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expandPath(%q): expected error", tc.path)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("expandPath(%q) = %q, %v; want %q", tc.path, got, err, tc.want)
		}
	}
}

// Package httpapi implements the gateway collaborator contract over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quotagate/pkg/gateway"
)

const defaultTimeout = 4 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

// Client is a gateway.Client issuing requests against one base URL.
type Client struct {
	baseURL string
	headers http.Header
	timeout time.Duration
	client  *http.Client
}

// New constructs an unopened client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	headers := http.Header{}
	for key, value := range opts.Headers {
		headers.Set(key, value)
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		headers: headers,
		timeout: timeout,
	}
}

// Factory returns a gateway.ClientFactory building one Client per Core.
func Factory(opts Options) gateway.ClientFactory {
	return func() gateway.Client {
		return New(opts)
	}
}

// Open validates the base URL and prepares the HTTP client.
func (c *Client) Open(_ context.Context) error {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("base url %q must be http or https", c.baseURL)
	}
	c.client = &http.Client{Timeout: c.timeout}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.client != nil {
		c.client.CloseIdleConnections()
	}
	return nil
}

// Get returns a Method that issues GET requests to path. Each "{}" in path is
// replaced by the next argument, path-escaped.
func Get(path string) gateway.Method {
	return func(ctx context.Context, client gateway.Client, args ...any) (gateway.Response, error) {
		c, ok := client.(*Client)
		if !ok {
			return gateway.Response{}, fmt.Errorf("httpapi: unsupported client %T", client)
		}
		resolved, err := expandPath(path, args)
		if err != nil {
			return gateway.Response{}, err
		}
		return c.get(ctx, resolved)
	}
}

// get performs one GET request and converts the answer into a Response.
func (c *Client) get(ctx context.Context, path string) (gateway.Response, error) {
	if c.client == nil {
		return gateway.Response{}, errors.New("httpapi: client is not open")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return gateway.Response{}, err
	}
	for key, values := range c.headers {
		req.Header[key] = values
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return gateway.Response{}, wrapTransportError(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gateway.Response{}, wrapTransportError(err)
	}
	return gateway.Response{
		Status: gateway.Status{
			Code:    strconv.Itoa(resp.StatusCode),
			Message: http.StatusText(resp.StatusCode),
		},
		Payload: decodePayload(body),
	}, nil
}

// wrapTransportError marks timeouts so the gateway counts them as such.
func wrapTransportError(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", gateway.ErrClientTimeout, err)
	}
	return err
}

// decodePayload keeps JSON bodies raw and everything else as text.
func decodePayload(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

// expandPath substitutes args into the "{}" placeholders of path.
func expandPath(path string, args []any) (string, error) {
	var b strings.Builder
	rest := path
	for _, arg := range args {
		idx := strings.Index(rest, "{}")
		if idx < 0 {
			return "", fmt.Errorf("httpapi: %d args for path %q", len(args), path)
		}
		b.WriteString(rest[:idx])
		b.WriteString(url.PathEscape(fmt.Sprint(arg)))
		rest = rest[idx+2:]
	}
	if strings.Contains(rest, "{}") {
		return "", fmt.Errorf("httpapi: missing args for path %q", path)
	}
	b.WriteString(rest)
	return b.String(), nil
}

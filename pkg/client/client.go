// Package client is an HTTP client for the batchctl status server. It
// mirrors the server's JSON surface with local types so importers do not
// pull in the supervisor packages.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a running `batchctl serve` instance.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // optional logger for client operations
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8321",
		Timeout: 10 * time.Second,
	}
}

// New creates a new batchctl API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  &http.Client{Timeout: config.Timeout},
		logger:  config.Logger,
	}
}

// Status fetches the worker's lifecycle state.
func (c *Client) Status(ctx context.Context) (*WorkerStatus, error) {
	var st WorkerStatus
	if err := c.getJSON(ctx, "/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Progress fetches the aggregated download progress. With records true the
// full record list is included.
func (c *Client) Progress(ctx context.Context, records bool) (*Progress, error) {
	var q url.Values
	if records {
		q = url.Values{"records": {"1"}}
	}
	var p Progress
	if err := c.getJSON(ctx, "/progress", q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Logs fetches the trailing n lines of the latest launch log. n <= 0 uses
// the server default.
func (c *Client) Logs(ctx context.Context, n int) ([]string, error) {
	var q url.Values
	if n > 0 {
		q = url.Values{"n": {strconv.Itoa(n)}}
	}
	body, status, err := c.get(ctx, "/logs", q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError(status, body)
	}
	text := strings.TrimRight(string(body), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// Stop asks the server to stop the worker. A StopOutcome comes back even
// when the worker survived the kill (state "failed").
func (c *Client) Stop(ctx context.Context) (*StopOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stop", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		return nil, apiError(resp.StatusCode, body)
	}
	var out StopOutcome
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode stop response: %w", err)
	}
	return &out, nil
}

// Healthz reports whether the server itself is reachable.
func (c *Client) Healthz(ctx context.Context) bool {
	body, status, err := c.get(ctx, "/healthz", nil)
	_ = body
	if err != nil {
		c.logger.Debug("healthz probe failed", "err", err)
		return false
	}
	return status == http.StatusOK
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	body, status, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError(status, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, int, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func apiError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", status, e.Error)
	}
	return fmt.Errorf("server returned %d", status)
}

package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"shikiwatch/internal/api"
	"shikiwatch/internal/config"
)

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// APIError is a non-2xx response from the daemon API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon api: status %d", e.Status)
	}
	return fmt.Sprintf("daemon api: %s (status %d)", e.Message, e.Status)
}

// Client talks to a running daemon over its local HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the API served at bind.
func NewClient(bind, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{
		baseURL: BaseURL(bind),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
}

// FromConfig builds a client for the configured API bind address.
func FromConfig(cfg *config.Config) *Client {
	return NewClient(cfg.API.Bind, cfg.API.Token, nil)
}

// BaseURL turns a listen address into a dialable URL. Wildcard hosts are
// replaced with the loopback address.
func BaseURL(bind string) string {
	bind = strings.TrimSpace(bind)
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return strings.TrimRight(bind, "/")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Scrobble asks the daemon to scrobble an episode.
func (c *Client) Scrobble(ctx context.Context, req api.ScrobbleRequest) (api.ScrobbleResult, error) {
	var out api.ScrobbleResult
	err := c.do(ctx, http.MethodPost, "/api/scrobble", nil, req, &out)
	return out, err
}

// Cancel suppresses pending scrobbles for live sessions.
func (c *Client) Cancel(ctx context.Context) (int, error) {
	var out api.CancelResponse
	err := c.do(ctx, http.MethodPost, "/api/cancel_scrobble", nil, nil, &out)
	return out.Cancelled, err
}

// Refresh reloads the anime list.
func (c *Client) Refresh(ctx context.Context) (int, error) {
	var out api.RefreshResponse
	err := c.do(ctx, http.MethodPost, "/api/refresh", nil, nil, &out)
	return out.Entries, err
}

// InvalidateSynonyms drops and refetches cached synonyms.
func (c *Client) InvalidateSynonyms(ctx context.Context) (int, error) {
	var out api.InvalidateResponse
	err := c.do(ctx, http.MethodPost, "/api/synonyms/invalidate", nil, nil, &out)
	return out.Synonyms, err
}

// Suggest returns near-miss list entries for a name.
func (c *Client) Suggest(ctx context.Context, query string, limit int) (api.SuggestResponse, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out api.SuggestResponse
	err := c.do(ctx, http.MethodGet, "/api/suggest", q, nil, &out)
	return out, err
}

// History returns recent journal rows.
func (c *Client) History(ctx context.Context, limit int) (api.HistoryResponse, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out api.HistoryResponse
	err := c.do(ctx, http.MethodGet, "/api/history", q, nil, &out)
	return out, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (api.NotificationTestResponse, error) {
	var out api.NotificationTestResponse
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isDaemonUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		var apiErr api.ErrorResponse
		message := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			message = apiErr.Error
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isDaemonUnavailable(err error) bool {
	var opErr *net.OpError
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENOENT) ||
		(errors.As(err, &opErr) && opErr.Op == "dial")
}

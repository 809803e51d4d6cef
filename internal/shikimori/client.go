package shikimori

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"shikiwatch/internal/logging"
	"shikiwatch/internal/ratelimit"
	"shikiwatch/internal/services"
)

const (
	component        = "shikimori"
	defaultUserAgent = "shikiwatch/dev"
	pageLimit        = 100
	retryAttempts    = 3
)

// Credentials holds the OAuth material used for bearer auth and refresh.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
}

func (c Credentials) canRefresh() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != ""
}

// TokenSink receives the token pair after a successful refresh.
type TokenSink func(accessToken, refreshToken string) error

// Client talks to the Shikimori API.
type Client struct {
	baseURL    string
	oauthURL   string
	userAgent  string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	sink       TokenSink
	logger     *slog.Logger
	retryDelay time.Duration

	mu    sync.Mutex
	creds Credentials
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter shares a rate limiter with other remote callers.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithTokenSink persists refreshed tokens.
func WithTokenSink(sink TokenSink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithUserAgent sets the User-Agent header; Shikimori rejects anonymous agents.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, component)
	}
}

// WithRetryDelay sets the base backoff between GET retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// New creates a Shikimori client.
func New(baseURL, oauthURL string, creds Credentials, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("shikimori base url required")
	}
	creds.AccessToken = strings.TrimSpace(creds.AccessToken)
	if creds.AccessToken == "" {
		return nil, errors.New("shikimori access token required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		oauthURL:   strings.TrimSpace(oauthURL),
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.New(0),
		logger:     logging.NewComponentLogger(nil, component),
		retryDelay: time.Second,
		creds:      creds,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// AccessToken returns the token currently used for requests.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.AccessToken
}

// get performs an idempotent request with retries on transient failures.
func (c *Client) get(ctx context.Context, operation, path string, query url.Values, out any) error {
	return retry.Do(
		func() error {
			return c.send(ctx, operation, http.MethodGet, path, query, nil, out, http.StatusOK)
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(services.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying shikimori request",
				logging.String("operation", operation),
				logging.Int("attempt", int(n)+1),
				logging.Error(err),
			)
		}),
	)
}

// send performs a single request, refreshing the access token once on 401.
func (c *Client) send(ctx context.Context, operation, method, path string, query url.Values, body any, out any, accept ...int) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return services.Wrap(services.ErrValidation, component, operation, "encode request", err)
		}
		payload = data
	}

	token := c.AccessToken()
	status, err := c.roundTrip(ctx, operation, method, path, query, payload, token, out, accept)
	if status != http.StatusUnauthorized {
		return err
	}
	if refreshErr := c.refresh(ctx, token); refreshErr != nil {
		logging.WarnWithContext(c.logger, "token refresh failed", "token_refresh_failed",
			logging.String("operation", operation),
			logging.Error(refreshErr),
			logging.String(logging.FieldErrorHint, "re-authorize and update access_token/refresh_token in config"),
			logging.String(logging.FieldImpact, "remote calls fail until credentials are fixed"),
		)
		return err
	}
	_, err = c.roundTrip(ctx, operation, method, path, query, payload, c.AccessToken(), out, accept)
	return err
}

func (c *Client) roundTrip(ctx context.Context, operation, method, path string, query url.Values, payload []byte, token string, out any, accept []int) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, component, operation, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, services.Wrap(services.ErrTransient, component, operation, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	c.logger.Debug("shikimori request",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)

	if !accepted(resp.StatusCode, accept) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		message := fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)
		if text := strings.TrimSpace(string(snippet)); text != "" {
			message += ": " + text
		}
		return resp.StatusCode, services.Wrap(statusMarker(resp.StatusCode), component, operation, message, nil)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, services.Wrap(services.ErrTransient, component, operation, "decode response", err)
	}
	return resp.StatusCode, nil
}

func accepted(status int, accept []int) bool {
	for _, code := range accept {
		if status == code {
			return true
		}
	}
	return false
}

func statusMarker(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.ErrUnauthorized
	case status == http.StatusNotFound:
		return services.ErrNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		return services.ErrTransient
	default:
		return services.ErrValidation
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// refresh exchanges the refresh token for a new pair. stale is the access token
// that was rejected; if another goroutine already replaced it, no exchange runs.
func (c *Client) refresh(ctx context.Context, stale string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds.AccessToken != stale {
		return nil
	}
	if !c.creds.canRefresh() || c.oauthURL == "" {
		return services.Wrap(services.ErrUnauthorized, component, "refresh token", "refresh credentials not configured", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)
	form.Set("refresh_token", c.creds.RefreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return services.Wrap(services.ErrValidation, component, "refresh token", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, component, "refresh token", "execute request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(statusMarker(resp.StatusCode), component, "refresh token", fmt.Sprintf("oauth returned %d", resp.StatusCode), nil)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return services.Wrap(services.ErrTransient, component, "refresh token", "decode response", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return services.Wrap(services.ErrUnauthorized, component, "refresh token", "oauth returned empty access token", nil)
	}

	c.creds.AccessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		c.creds.RefreshToken = payload.RefreshToken
	}
	c.logger.Info("shikimori access token refreshed",
		logging.String(logging.FieldEventType, "token_refreshed"),
		logging.Int("expires_in", payload.ExpiresIn),
	)
	if c.sink != nil {
		if err := c.sink(c.creds.AccessToken, c.creds.RefreshToken); err != nil {
			logging.WarnWithContext(c.logger, "failed to persist refreshed tokens", "token_persist_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check config file permissions"),
				logging.String(logging.FieldImpact, "tokens will be refreshed again after restart"),
			)
		}
	}
	return nil
}

// Package apiclient talks to the goals API over HTTP and implements
// goals.Service for the detail screen.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"goaltracker/internal/analytics"
	"goaltracker/internal/apierr"
	"goaltracker/internal/auth"
	"goaltracker/internal/goals"
)

type Client struct {
	baseURL    *url.URL
	http       *http.Client
	env        analytics.Envelope
	retries    uint
	retryDelay time.Duration
	log        *slog.Logger
	lists      singleflight.Group

	mu    sync.RWMutex
	token string
}

var _ goals.Service = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithEnvelope(env analytics.Envelope) Option {
	return func(c *Client) { c.env = env }
}

// WithReadRetries sets how many times a failed read is retried. Mutations
// are never retried.
func WithReadRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = uint(n)
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    u,
		http:       &http.Client{Timeout: 10 * time.Second, Jar: jar},
		retries:    3,
		retryDelay: 200 * time.Millisecond,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "apiclient")
	return c, nil
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.TokenResponse, error) {
	var out auth.TokenResponse
	body := auth.Credentials{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out, nil); err != nil {
		return auth.TokenResponse{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

func (c *Client) Register(ctx context.Context, creds auth.Credentials) (auth.TokenResponse, error) {
	var out auth.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", creds, &out, nil); err != nil {
		return auth.TokenResponse{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	c.SetToken("")
	return err
}

func (c *Client) Me(ctx context.Context) (auth.User, error) {
	var out auth.User
	err := c.read(ctx, "/auth/me", &out)
	return out, err
}

// ListGoals fetches all goals. Concurrent calls share one request.
func (c *Client) ListGoals(ctx context.Context) ([]goals.Goal, error) {
	v, err, _ := c.lists.Do("goals", func() (any, error) {
		var out struct {
			Goals []goals.Goal `json:"goals"`
		}
		if err := c.read(ctx, "/goals", &out); err != nil {
			return nil, err
		}
		return out.Goals, nil
	})
	if err != nil {
		return nil, err
	}
	shared := v.([]goals.Goal)
	return append([]goals.Goal(nil), shared...), nil
}

func (c *Client) CreateGoal(ctx context.Context, in goals.NewGoal) (goals.Goal, error) {
	var out goals.Goal
	err := c.do(ctx, http.MethodPost, "/goals", in, &out, nil)
	return out, err
}

func (c *Client) GetGoal(ctx context.Context, id int64) (goals.Goal, error) {
	var out goals.Goal
	err := c.read(ctx, goalPath(id), &out)
	return out, err
}

func (c *Client) UpdateGoal(ctx context.Context, id int64, patch goals.Patch) (goals.Goal, error) {
	var out goals.Goal
	err := c.do(ctx, http.MethodPatch, goalPath(id), patch, &out, idempotent(ctx))
	return out, err
}

func (c *Client) DeleteGoal(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, goalPath(id), nil, nil, nil)
}

func goalPath(id int64) string {
	return "/goals/" + strconv.FormatInt(id, 10)
}

// idempotent carries the caller's key from ctx, or a fresh one.
func idempotent(ctx context.Context) http.Header {
	key, ok := goals.IdempotencyKey(ctx)
	if !ok {
		key = analytics.NewIdempotencyKey()
	}
	h := http.Header{}
	h.Set(analytics.HeaderIdempotencyKey, key)
	return h
}

func (c *Client) read(ctx context.Context, path string, out any) error {
	return retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, path, nil, out, nil)
		},
		retry.Attempts(c.retries+1),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(goals.Retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.DebugContext(ctx, "read failed, retrying", "path", path, "attempt", n+1, "err", err)
		}),
		retry.Context(ctx),
	)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, extra http.Header) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	c.env.Apply(req.Header)
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, goals.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w: %w", method, path, goals.ErrNetwork, err)
	}
	return nil
}

func responseError(method, path string, resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)
	var envelope apierr.Response
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	} else if s := strings.TrimSpace(string(data)); s != "" {
		msg = s
	}
	return fmt.Errorf("%s %s: %w (%d): %s", method, path, apierr.Sentinel(resp.StatusCode), resp.StatusCode, msg)
}

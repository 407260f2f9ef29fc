package registry

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
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/requestid"
)

const (
	// HeaderRequestID carries the request ID found in the call context, or a
	// fresh one, for server-side correlation.
	HeaderRequestID = requestid.Header
	// HeaderClientSeq carries the client mutation sequence of a preference write.
	HeaderClientSeq = "X-Client-Seq"

	defaultListLimit = 50
	maxErrorBody     = 1 << 20

	pathVAPIDKey = "/push/vapid-key"
)

// Client is the HTTP implementation of Registry.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	backoff    BackoffStrategy
	breaker    *CircuitBreaker
	logger     *slog.Logger
	userAgent  string
}

var _ Registry = (*Client)(nil)

// New creates a registry client for baseURL, e.g. "https://api.example.com/v1".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    10 * time.Second,
		maxRetries: 2,
		backoff:    DefaultBackoff(),
		logger:     slog.Default(),
		userAgent:  "pushkit/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type registerRequest struct {
	Subscription Subscription `json:"subscription"`
	DeviceLabel  string       `json:"deviceLabel"`
}

type listResponse struct {
	Notifications []Notification `json:"notifications"`
}

func (c *Client) VAPIDKey(ctx context.Context) (KeyInfo, error) {
	var info KeyInfo
	if err := c.get(ctx, pathVAPIDKey, &info); err != nil {
		return KeyInfo{}, fmt.Errorf("registry.VAPIDKey: %w", err)
	}
	return info, nil
}

func (c *Client) RegisterDevice(ctx context.Context, sub Subscription, label string) error {
	if sub.Endpoint == "" {
		return fmt.Errorf("registry.RegisterDevice: %w: empty endpoint", ErrInvalidRequest)
	}
	body := registerRequest{Subscription: sub, DeviceLabel: NormalizeLabel(label)}
	if err := c.do(ctx, http.MethodPost, "/push/subscriptions", body, nil, nil); err != nil {
		return fmt.Errorf("registry.RegisterDevice: %w", err)
	}
	return nil
}

func (c *Client) UnregisterDevice(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("registry.UnregisterDevice: %w: empty endpoint", ErrInvalidRequest)
	}
	err := c.do(ctx, http.MethodDelete, "/push/subscriptions/"+url.PathEscape(endpoint), nil, nil, nil)
	if err != nil && !IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("registry.UnregisterDevice: %w", err)
	}
	return nil
}

func (c *Client) Preferences(ctx context.Context) (Preferences, error) {
	var prefs Preferences
	if err := c.get(ctx, "/notifications/preferences", &prefs); err != nil {
		return Preferences{}, fmt.Errorf("registry.Preferences: %w", err)
	}
	return prefs, nil
}

func (c *Client) UpdatePreferences(ctx context.Context, patch PreferencesPatch, seq uint64) error {
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("registry.UpdatePreferences: %w", err)
	}
	hdr := http.Header{}
	hdr.Set(HeaderClientSeq, strconv.FormatUint(seq, 10))
	if err := c.do(ctx, http.MethodPatch, "/notifications/preferences", patch, nil, hdr); err != nil {
		return fmt.Errorf("registry.UpdatePreferences: %w", err)
	}
	return nil
}

func (c *Client) ListNotifications(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var resp listResponse
	if err := c.get(ctx, "/notifications?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("registry.ListNotifications: %w", err)
	}
	if resp.Notifications == nil {
		resp.Notifications = []Notification{}
	}
	return resp.Notifications, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("registry.MarkRead: %w: empty id", ErrInvalidRequest)
	}
	if err := c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil); err != nil {
		return fmt.Errorf("registry.MarkRead: %w", err)
	}
	return nil
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/notifications/read-all", nil, nil, nil); err != nil {
		return fmt.Errorf("registry.MarkAllRead: %w", err)
	}
	return nil
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("registry.DeleteNotification: %w: empty id", ErrInvalidRequest)
	}
	err := c.do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil, nil, nil)
	if err != nil && !IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("registry.DeleteNotification: %w", err)
	}
	return nil
}

func (c *Client) SendTest(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/notifications/test", nil, nil, nil); err != nil {
		return fmt.Errorf("registry.SendTest: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, nil)
}

// do runs a request through the circuit breaker. GET requests that fail with a
// network failure are retried with backoff; other methods get one attempt.
func (c *Client) do(ctx context.Context, method, path string, body, out any, hdr http.Header) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		payload = data
	}

	ctx, _ = requestid.Ensure(ctx)

	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff.NextInterval(attempt)
			c.logger.LogAttrs(ctx, slog.LevelDebug, "retrying registry request",
				logger.Component("registry"),
				logger.Operation(method+" "+path),
				logger.RetryCount(attempt),
				logger.Duration(delay),
				logger.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return errors.Join(ErrNetworkFailure, ctx.Err())
			case <-time.After(delay):
			}
		}

		if c.breaker != nil && !c.breaker.Allow() {
			return errors.Join(ErrNetworkFailure, ErrCircuitOpen)
		}

		lastErr = c.attempt(ctx, method, path, payload, out, hdr)

		if c.breaker != nil {
			if errors.Is(lastErr, ErrNetworkFailure) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}

		if lastErr == nil || !errors.Is(lastErr, ErrNetworkFailure) {
			return lastErr
		}
	}

	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any, hdr http.Header) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	_, requestID := requestid.Ensure(ctx)
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "registry request failed",
			logger.Component("registry"),
			logger.Operation(method+" "+path),
			logger.RequestID(requestID),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		)
		return errors.Join(ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		httpErr := readHTTPError(resp)
		switch {
		case resp.StatusCode == http.StatusServiceUnavailable && path == pathVAPIDKey:
			// no push key configured, not a transport failure
			return errors.Join(ErrServiceUnavailable, httpErr)
		case resp.StatusCode >= 500:
			return errors.Join(ErrNetworkFailure, httpErr)
		case resp.StatusCode == http.StatusTooManyRequests:
			return errors.Join(ErrRateLimited, httpErr)
		}
		return httpErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func readHTTPError(resp *http.Response) *HTTPError {
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", err)}
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
		return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}

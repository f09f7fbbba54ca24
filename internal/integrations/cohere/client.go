package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"support-agent/internal/domain"
)

const (
	DefaultURL         = "https://api.cohere.ai/v1/chat"
	DefaultModel       = "command-r"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
)

// ErrMissingAPIKey is returned by key sources that have nothing configured.
var ErrMissingAPIKey = errors.New("cohere: api key is not configured")

type chatHistoryMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// chatRequest is the request shape of the /v1/chat endpoint.
type chatRequest struct {
	Model       string               `json:"model"`
	Message     string               `json:"message"`
	ChatHistory []chatHistoryMessage `json:"chat_history"`
	Preamble    string               `json:"preamble"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Connectors  []string             `json:"connectors"`
}

type chatResponse struct {
	Text *string `json:"text"`
}

// KeySource resolves the API key used for the Authorization header.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a key supplied directly through configuration.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	key := strings.TrimSpace(string(k))
	if key == "" || key == "your_cohere_api_key_here" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}

// Observer is notified once per attempt with its outcome.
type Observer interface {
	ObserveAttempt(outcome string, duration time.Duration)
}

// Client delivers chat requests to the completion endpoint, retrying transient failures.
type Client struct {
	url         string
	model       string
	maxAttempts int
	httpClient  *http.Client
	keys        KeySource
	observer    Observer
	sleep       func(ctx context.Context, d time.Duration) error

	keyMu  sync.Mutex
	apiKey string
}

type Option func(*Client)

func WithURL(url string) Option {
	return func(c *Client) {
		c.url = strings.TrimSpace(url)
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = strings.TrimSpace(model)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithSleep replaces the backoff sleep; tests use it to record delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("cohere: key source must not be nil")
	}
	c := &Client{
		url:         DefaultURL,
		model:       DefaultModel,
		maxAttempts: DefaultMaxAttempts,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		keys:        keys,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.url == "" {
		return nil, errors.New("cohere: url must not be empty")
	}
	if c.model == "" {
		return nil, errors.New("cohere: model must not be empty")
	}
	return c, nil
}

// resolveAPIKey caches the first successfully resolved key; failures are retried on the next call.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return "", err
	}
	c.apiKey = key
	return key, nil
}

// HealthCheck reports whether an API key can be resolved.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.resolveAPIKey(ctx)
	return err
}

// Complete sends req and returns the raw reply text. Every error is an *Error.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		if errors.Is(err, ErrMissingAPIKey) {
			return "", &Error{Kind: KindAuth, Err: err}
		}
		return "", &Error{Kind: KindUnexpected, Err: err}
	}

	body, err := json.Marshal(buildChatRequest(c.model, req))
	if err != nil {
		return "", &Error{Kind: KindUnexpected, Err: fmt.Errorf("cohere: marshal request: %w", err)}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		last := attempt == c.maxAttempts-1

		start := time.Now()
		text, err := c.attempt(ctx, apiKey, body)
		kind := classify(err)
		c.observe(kind, time.Since(start))
		if err == nil {
			return text, nil
		}
		lastErr = err

		switch kind {
		case KindAuth, KindMalformed, KindUnexpected:
			return "", &Error{Kind: kind, Attempts: attempt + 1, Err: err}
		}

		// the budget is spent, so there is nothing left to back off for
		if last {
			return "", &Error{Kind: kind, Attempts: attempt + 1, Err: err}
		}

		delay := backoff(attempt)
		slog.Warn("completion attempt failed, retrying",
			"attempt", attempt+1,
			"kind", kind,
			"delay", delay,
			"error", err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return "", &Error{Kind: KindUnexpected, Attempts: attempt + 1, Err: err}
		}
	}

	// Only reachable with maxAttempts <= 0.
	return "", &Error{Kind: KindUnexpected, Attempts: c.maxAttempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, apiKey string, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &requestError{err: fmt.Errorf("cohere: create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(httpReq)
	if err != nil {
		return "", err
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", &malformedError{err: fmt.Errorf("cohere: decode response: %w", decErr)}
	}
	if payload.Text == nil {
		return "", &malformedError{err: errors.New("cohere: response has no text field")}
	}
	return strings.TrimSpace(*payload.Text), nil
}

func (c *Client) doJSONRequest(req *http.Request) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        c.url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("cohere: read response body: %w", err)
	}
	return buf, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (c *Client) observe(kind Kind, d time.Duration) {
	if c.observer == nil {
		return
	}
	outcome := string(kind)
	if kind == "" {
		outcome = "success"
	}
	c.observer.ObserveAttempt(outcome, d)
}

func buildChatRequest(model string, req domain.CompletionRequest) chatRequest {
	history := make([]chatHistoryMessage, 0, len(req.History))
	for _, t := range req.History {
		history = append(history, chatHistoryMessage{Role: string(t.Speaker), Message: t.Text})
	}
	return chatRequest{
		Model:       model,
		Message:     req.Message,
		ChatHistory: history,
		Preamble:    req.Preamble,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Connectors:  []string{},
	}
}

type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

type malformedError struct{ err error }

func (e *malformedError) Error() string { return e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

// classify maps an attempt error to its Kind. A nil error yields "".
func classify(err error) Kind {
	if err == nil {
		return ""
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatusCode() {
		case http.StatusUnauthorized:
			return KindAuth
		case http.StatusTooManyRequests:
			return KindRateLimited
		default:
			return KindUpstream
		}
	}

	var malformed *malformedError
	if errors.As(err, &malformed) {
		return KindMalformed
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return KindUnexpected
	}

	if errors.Is(err, context.Canceled) {
		return KindUnexpected
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindNetwork
}

// backoff is 2^attempt seconds with attempts counted from zero.
func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

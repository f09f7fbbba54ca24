package cohere

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-agent/internal/domain"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type fakeKeys struct {
	key   string
	err   error
	calls int
}

func (f *fakeKeys) APIKey(context.Context) (string, error) {
	f.calls++
	return f.key, f.err
}

type fakeObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *fakeObserver) ObserveAttempt(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func newTestClient(t *testing.T, url string, rec *sleepRecorder, opts ...Option) *Client {
	t.Helper()
	all := append([]Option{WithURL(url), WithSleep(rec.sleep)}, opts...)
	c, err := NewClient(StaticKey("test-key"), all...)
	require.NoError(t, err)
	return c
}

func sampleRequest() domain.CompletionRequest {
	history := []domain.Turn{
		domain.UserTurn("hi"),
		domain.AssistantTurn("Hello! How can I help?"),
	}
	return domain.NewCompletionRequest("What are your hours?", history, "You are a support assistant.")
}

func requireKind(t *testing.T, err error, want Kind) *Error {
	t.Helper()
	var cErr *Error
	require.True(t, errors.As(err, &cErr), "expected *cohere.Error, got %T", err)
	require.Equal(t, want, cErr.Kind)
	return cErr
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_NilKeySource(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(StaticKey("k"))
	require.NoError(t, err)
	require.Equal(t, DefaultURL, c.url)
	require.Equal(t, DefaultModel, c.model)
	require.Equal(t, DefaultMaxAttempts, c.maxAttempts)
	require.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestNewClient_EmptyModel(t *testing.T) {
	_, err := NewClient(StaticKey("k"), WithModel("  "))
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Complete
// ---------------------------------------------------------------------------

func TestComplete_SendsWireFormat(t *testing.T) {
	var got chatRequest
	var auth string
	var decodeErr error
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		decodeErr = json.Unmarshal(raw, &got)
		_, _ = w.Write([]byte(`{"text":"  We are open 9 to 5  "}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv.URL, rec)

	text, err := c.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.NoError(t, decodeErr)
	require.Equal(t, "We are open 9 to 5", text)
	require.Equal(t, "Bearer test-key", auth)
	require.Equal(t, DefaultModel, got.Model)
	require.Equal(t, "What are your hours?", got.Message)
	require.Equal(t, 0.3, got.Temperature)
	require.Equal(t, 200, got.MaxTokens)
	require.NotNil(t, got.Connectors)
	require.Empty(t, got.Connectors)
	require.Equal(t, []chatHistoryMessage{
		{Role: "USER", Message: "hi"},
		{Role: "CHATBOT", Message: "Hello! How can I help?"},
	}, got.ChatHistory)
	require.Empty(t, rec.recorded())
}

func TestComplete_RateLimitedThenSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv.URL, rec)

	text, err := c.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Equal(t, []time.Duration{time.Second}, rec.recorded())
}

func TestComplete_RateLimitedExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv.URL, rec)

	_, err := c.Complete(context.Background(), sampleRequest())
	cErr := requireKind(t, err, KindRateLimited)
	require.Equal(t, 3, cErr.Attempts)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
	// no sleep after the final attempt
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.recorded())
}

func TestComplete_ServerErrorExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	obs := &fakeObserver{}
	c := newTestClient(t, srv.URL, rec, WithObserver(obs))

	_, err := c.Complete(context.Background(), sampleRequest())
	cErr := requireKind(t, err, KindUpstream)
	require.Equal(t, 3, cErr.Attempts)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
	require.Len(t, rec.recorded(), 2)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.HTTPStatusCode())
	require.Equal(t, []string{"upstream_unavailable", "upstream_unavailable", "upstream_unavailable"}, obs.outcomes)
}

func TestComplete_UnauthorizedNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv.URL, rec)

	_, err := c.Complete(context.Background(), sampleRequest())
	cErr := requireKind(t, err, KindAuth)
	require.Equal(t, 1, cErr.Attempts)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Empty(t, rec.recorded())
}

func TestComplete_MalformedBodies(t *testing.T) {
	cases := map[string]string{
		"not json":       `<html>oops</html>`,
		"missing text":   `{"generation_id":"abc"}`,
		"non-string text": `{"text":42}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			rec := &sleepRecorder{}
			c := newTestClient(t, srv.URL, rec)

			_, err := c.Complete(context.Background(), sampleRequest())
			requireKind(t, err, KindMalformed)
			require.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestComplete_EmptyTextIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"   "}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &sleepRecorder{})
	text, err := c.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "", text)
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv.URL, rec,
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
	)

	_, err := c.Complete(context.Background(), sampleRequest())
	cErr := requireKind(t, err, KindTimeout)
	require.Equal(t, 3, cErr.Attempts)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.recorded())
}

func TestComplete_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, url, rec)

	_, err := c.Complete(context.Background(), sampleRequest())
	cErr := requireKind(t, err, KindNetwork)
	require.Equal(t, 3, cErr.Attempts)
	require.Len(t, rec.recorded(), 2)
}

func TestComplete_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv.URL, rec)

	_, err := c.Complete(ctx, sampleRequest())
	requireKind(t, err, KindUnexpected)
	require.Empty(t, rec.recorded())
}

func TestComplete_MissingAPIKey(t *testing.T) {
	c, err := NewClient(StaticKey(""), WithURL("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), sampleRequest())
	cErr := requireKind(t, err, KindAuth)
	require.ErrorIs(t, cErr, ErrMissingAPIKey)
	require.Equal(t, 0, cErr.Attempts)
}

func TestComplete_KeySourceFailure(t *testing.T) {
	keys := &fakeKeys{err: errors.New("ssm unavailable")}
	c, err := NewClient(keys, WithURL("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), sampleRequest())
	requireKind(t, err, KindUnexpected)
}

// ---------------------------------------------------------------------------
// key caching and health
// ---------------------------------------------------------------------------

func TestResolveAPIKey_CachedAfterSuccess(t *testing.T) {
	keys := &fakeKeys{key: "k1"}
	c, err := NewClient(keys)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		key, err := c.resolveAPIKey(context.Background())
		require.NoError(t, err)
		require.Equal(t, "k1", key)
	}
	require.Equal(t, 1, keys.calls)
}

func TestResolveAPIKey_RetriedAfterFailure(t *testing.T) {
	keys := &fakeKeys{err: errors.New("boom")}
	c, err := NewClient(keys)
	require.NoError(t, err)

	_, err = c.resolveAPIKey(context.Background())
	require.Error(t, err)

	keys.err = nil
	keys.key = "k2"
	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "k2", key)
	require.Equal(t, 2, keys.calls)
}

func TestHealthCheck(t *testing.T) {
	ok, err := NewClient(StaticKey("k"))
	require.NoError(t, err)
	require.NoError(t, ok.HealthCheck(context.Background()))

	missing, err := NewClient(StaticKey("your_cohere_api_key_here"))
	require.NoError(t, err)
	require.ErrorIs(t, missing.HealthCheck(context.Background()), ErrMissingAPIKey)
}

func TestBackoff(t *testing.T) {
	require.Equal(t, time.Second, backoff(0))
	require.Equal(t, 2*time.Second, backoff(1))
	require.Equal(t, 4*time.Second, backoff(2))
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

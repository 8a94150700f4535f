package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIPv4Server listens on 127.0.0.1 explicitly; some sandboxes refuse
// the dual-stack listener httptest picks.
func newIPv4Server(t *testing.T, handler http.Handler) string {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String()
}

// statusSequence replies with statuses in order, repeating the last one.
func statusSequence(t *testing.T, statuses []int, headers []http.Header, ok any) (string, *int32) {
	t.Helper()
	var calls int32
	url := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&calls, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if i < len(headers) {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(statuses[i])
		if statuses[i] < 300 {
			_ = json.NewEncoder(w).Encode(ok)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "slow down", "code": "rate_limited"}})
	}))
	return url, &calls
}

func okBody(text string) map[string]any {
	return map[string]any{
		"id":      "gen-1",
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": text}}},
		"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
	}
}

func testClient(url string, retries int) (*Client, *[]time.Duration) {
	c := NewClient(RuntimeConfig{APIKey: "k", BaseURL: url, RetryMax: retries})
	var waits []time.Duration
	c.t.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return c, &waits
}

func userRequest() GenerateRequest {
	return GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}}
}

func TestGenerateRetriesOn429(t *testing.T) {
	url, calls := statusSequence(t, []int{429, 429, 200}, nil, okBody("ok"))
	c, waits := testClient(url, 3)

	resp, err := c.Generate(context.Background(), userRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
	assert.Len(t, *waits, 2)
}

func TestRetryAfterHonored(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "2")
	url, _ := statusSequence(t, []int{429, 200}, []http.Header{h}, okBody("ok"))
	c, waits := testClient(url, 2)

	_, err := c.Generate(context.Background(), userRequest())
	require.NoError(t, err)
	require.Len(t, *waits, 1)
	assert.Equal(t, 2*time.Second, (*waits)[0])
}

func TestRateLimitErrorAfterRetries(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	h.Set("X-Request-Id", "req-42")
	url, calls := statusSequence(t, []int{429}, []http.Header{h}, nil)
	c, _ := testClient(url, 2)

	_, err := c.Generate(context.Background(), userRequest())
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
	assert.Equal(t, "req-42", rl.RequestID)
	assert.Equal(t, "rate_limited", rl.Code)
	assert.Contains(t, err.Error(), "request_id=req-42")
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestClassifiedErrors(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{401, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{400, func(err error) bool { var e *BadRequestError; return errors.As(err, &e) }},
		{503, func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
	}
	for _, tc := range tests {
		url, _ := statusSequence(t, []int{tc.status}, nil, nil)
		c, _ := testClient(url, 1)
		_, err := c.Generate(context.Background(), userRequest())
		assert.True(t, tc.check(err), "status %d: %v", tc.status, err)
	}
}

func TestRequestHeadersAndBody(t *testing.T) {
	var got GenerateRequest
	var auth, title string
	url := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		title = r.Header.Get("X-Title")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(okBody("{}"))
	}))
	c, _ := testClient(url, 1)
	p := Prompt{Text: "build a dashboard"}
	_, err := c.Generate(context.Background(), p.Request("openai/gpt-4o-mini", 500))
	require.NoError(t, err)
	assert.Equal(t, "Bearer k", auth)
	assert.Equal(t, "Dashloom CLI", title)
	assert.Equal(t, 500, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestGenerateValidates(t *testing.T) {
	c := NewClient(RuntimeConfig{})
	_, err := c.Generate(context.Background(), userRequest())
	assert.ErrorContains(t, err, "OPENROUTER_API_KEY")

	c = NewClient(RuntimeConfig{APIKey: "k"})
	_, err = c.Generate(context.Background(), GenerateRequest{Model: "m"})
	assert.ErrorContains(t, err, "messages cannot be empty")
}

func TestParseRetryAfter(t *testing.T) {
	s, err := parseRetryAfterSeconds("5")
	require.NoError(t, err)
	assert.Equal(t, 5, s)

	_, err = parseRetryAfterSeconds("soon")
	assert.Error(t, err)

	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	s, err = parseRetryAfterSeconds(future)
	require.NoError(t, err)
	assert.InDelta(t, 30, s, 2)
}

func TestWithJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := withJitter(time.Second)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.Less(t, d, 1200*time.Millisecond)
	}
}

func TestNewRuntime(t *testing.T) {
	rt, err := NewRuntime("OpenRouter", RuntimeConfig{})
	require.NoError(t, err)
	assert.IsType(t, &Client{}, rt)

	rt, err = NewRuntime(ProviderOllama, RuntimeConfig{})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, rt)

	_, err = NewRuntime("bard", RuntimeConfig{})
	assert.Error(t, err)
	assert.Equal(t, []string{"ollama", "openrouter"}, Providers())
}

func TestModelCatalog(t *testing.T) {
	cost, ok := EstimateCostUSD("openai/gpt-4o-mini", 1000, 1000)
	require.True(t, ok)
	assert.InDelta(t, 0.00075, cost, 1e-9)

	_, ok = EstimateCostUSD("unknown/model", 1, 1)
	assert.False(t, ok)

	assert.True(t, FitsContext("unknown/model", 1<<30, 0))
	assert.True(t, FitsContext("llama3.1:8b", 6000, 2000))
	assert.False(t, FitsContext("llama3.1:8b", 7000, 2000))
}

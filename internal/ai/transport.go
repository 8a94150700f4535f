package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/logger"
)

type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
}

// transport posts JSON with retries on transient network errors, 429 and 5xx.
type transport struct {
	name   string
	client *http.Client
	policy retryPolicy
	// parseError extracts code and message from a provider error body.
	parseError func(raw map[string]any, apiErr *APIError)
	// modelNotFoundOn404 treats every 404 as a missing model.
	modelNotFoundOn404 bool
	// unreachable wraps a final network error; nil keeps the plain error.
	unreachable func(err error) error
	sleep       func(ctx context.Context, d time.Duration) error
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// post sends payload to url and decodes a 2xx body into out. It returns the
// provider request id when one is present.
func (t *transport) post(ctx context.Context, url string, headers map[string]string, payload []byte, out any) (string, error) {
	backoff := t.policy.base
	var lastErr error
	for attempt := 1; attempt <= t.policy.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return "", errors.Wrap(err, "build request")
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			if isRetryableNetErr(err) && attempt < t.policy.attempts {
				t.retrying(attempt, err)
				if err := t.sleep(ctx, t.capped(withJitter(backoff))); err != nil {
					return "", err
				}
				backoff *= 2
				continue
			}
			if t.unreachable != nil {
				return "", t.unreachable(err)
			}
			return "", errors.Wrap(err, "http request")
		}

		requestID := extractRequestID(resp)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return requestID, errors.Wrap(err, "decode response")
			}
			return requestID, nil
		}

		apiErr := t.readError(resp)
		resp.Body.Close()
		apiErr.RequestID = requestID
		lastErr = t.classify(apiErr, resp.Header)
		if !retryableStatus(resp.StatusCode) || attempt == t.policy.attempts {
			return requestID, lastErr
		}
		t.retrying(attempt, lastErr)
		wait := t.capped(withJitter(backoff))
		if secs, err := parseRetryAfterSeconds(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
		if err := t.sleep(ctx, wait); err != nil {
			return "", err
		}
		backoff *= 2
	}
	return "", lastErr
}

func (t *transport) retrying(attempt int, err error) {
	logger.Logger.Debugw("retrying model request",
		logger.FieldComponent, t.name,
		logger.FieldAttempt, attempt,
		logger.FieldError, err.Error())
}

func (t *transport) capped(d time.Duration) time.Duration {
	if t.policy.max > 0 && d > t.policy.max {
		return t.policy.max
	}
	return d
}

func (t *transport) readError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw}
	if t.parseError != nil {
		t.parseError(raw, apiErr)
	}
	return apiErr
}

// classify maps a status onto the typed errors in errors.go.
func (t *transport) classify(apiErr *APIError, h http.Header) error {
	sc := apiErr.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if secs, err := parseRetryAfterSeconds(h.Get("Retry-After")); err == nil && secs > 0 {
			ra = time.Duration(secs) * time.Second
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusNotFound:
		if t.modelNotFoundOn404 || apiErr.Code == "model_not_found" || containsAllFold(apiErr.Message, "model", "not", "found") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	case sc == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case apiErr.Code == "quota_exceeded" || containsAnyFold(apiErr.Message, "quota", "billing", "limit exceeded"):
		return &QuotaExceededError{APIError: apiErr}
	case sc >= 500:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

func retryableStatus(sc int) bool {
	return sc == http.StatusTooManyRequests || (sc >= 500 && sc <= 599)
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

// parseRetryAfterSeconds reads Retry-After as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if v == "" {
		return 0, errors.New("empty Retry-After")
	}
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, errors.Newf("invalid Retry-After: %q", v)
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter returns d scaled by a random factor in [0.8, 1.2).
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if out <= 0 {
		return d
	}
	return out
}

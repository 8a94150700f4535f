package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Client talks to the OpenRouter chat completions API.
type Client struct {
	apiKey  string
	baseURL string
	t       *transport
}

// NewClient returns an OpenRouter client. Unset retry fields default to three
// attempts backing off from 500ms up to 4s.
func NewClient(cfg RuntimeConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		t: &transport{
			name:       ProviderOpenRouter,
			client:     &http.Client{Timeout: cfg.timeout()},
			policy:     cfg.policy(retryPolicy{attempts: 3, base: 500 * time.Millisecond, max: 4 * time.Second}),
			parseError: parseOpenRouterError,
			sleep:      sleepCtx,
		},
	}
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.WithHint(errors.New("OPENROUTER_API_KEY is missing"),
			"export OPENROUTER_API_KEY or run `dashloom config set api_key <key>`")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"HTTP-Referer":  "https://github.com/KaramelBytes/dashloom-cli",
		"X-Title":       "Dashloom CLI",
	}
	var out GenerateResponse
	id, err := c.t.post(ctx, c.baseURL+"/chat/completions", headers, payload, &out)
	if err != nil {
		return nil, err
	}
	out.RequestID = id
	return &out, nil
}

func parseOpenRouterError(raw map[string]any, apiErr *APIError) {
	src := raw
	if v, ok := raw["error"].(map[string]any); ok {
		src = v
	}
	if msg, ok := src["message"].(string); ok {
		apiErr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		apiErr.Code = code
	}
}

func validateRequest(req GenerateRequest) error {
	if req.Model == "" {
		return errors.NewInvalidRequestError("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return errors.NewInvalidRequestError("messages cannot be empty")
	}
	return nil
}

package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

// DefaultOllamaHost is where a local Ollama listens by default.
const DefaultOllamaHost = "http://127.0.0.1:11434"

// OllamaClient talks to a local Ollama runtime over /api/chat.
type OllamaClient struct {
	host string
	t    *transport
}

func NewOllamaClient(cfg RuntimeConfig) *OllamaClient {
	host := cfg.Host
	if host == "" {
		host = DefaultOllamaHost
	}
	host = strings.TrimRight(host, "/")
	return &OllamaClient{
		host: host,
		t: &transport{
			name:               ProviderOllama,
			client:             &http.Client{Timeout: cfg.timeout()},
			policy:             cfg.policy(retryPolicy{attempts: 2, base: 200 * time.Millisecond, max: time.Second}),
			parseError:         parseOllamaError,
			modelNotFoundOn404: true,
			unreachable: func(err error) error {
				return &UnreachableError{Host: host, Err: err}
			},
			sleep: sleepCtx,
		},
	}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	oreq := ollamaChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Options:  map[string]any{},
	}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		oreq.Format = "json"
	}
	payload, err := json.Marshal(oreq)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	var oresp ollamaChatResponse
	id, err := c.t.post(ctx, c.host+"/api/chat", nil, payload, &oresp)
	if err != nil {
		return nil, err
	}
	return &GenerateResponse{
		Choices: []Choice{{Message: Message{Role: oresp.Message.Role, Content: oresp.Message.Content}}},
		Usage: Usage{
			PromptTokens:     oresp.PromptEvalCount,
			CompletionTokens: oresp.EvalCount,
			TotalTokens:      oresp.PromptEvalCount + oresp.EvalCount,
		},
		RequestID: id,
	}, nil
}

func parseOllamaError(raw map[string]any, apiErr *APIError) {
	if msg, ok := raw["error"].(string); ok {
		apiErr.Message = msg
	}
	if msg, ok := raw["message"].(string); ok && apiErr.Message == "" {
		apiErr.Message = msg
	}
}

package ai

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

// Runtime is implemented by model backends such as OpenRouter and a local
// Ollama instance.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used for selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat asks the backend for a JSON object reply.
type ResponseFormat struct {
	Type string `json:"type"`
}

type GenerateRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Text returns the content of the first choice.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// RuntimeConfig carries the knobs shared by runtimes. Zero values pick the
// runtime's defaults.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// APIKey authenticates against OpenRouter.
	APIKey string
	// Host is the Ollama base URL.
	Host string
	// BaseURL overrides the OpenRouter endpoint.
	BaseURL string
}

func (c RuntimeConfig) policy(def retryPolicy) retryPolicy {
	p := def
	if c.RetryMax > 0 {
		p.attempts = c.RetryMax
	}
	if c.BaseDelay > 0 {
		p.base = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		p.max = c.MaxDelay
	}
	return p
}

func (c RuntimeConfig) timeout() time.Duration {
	if c.HTTPTimeout > 0 {
		return c.HTTPTimeout
	}
	return 60 * time.Second
}

var registry = map[string]func(RuntimeConfig) Runtime{
	ProviderOpenRouter: func(c RuntimeConfig) Runtime { return NewClient(c) },
	ProviderOllama:     func(c RuntimeConfig) Runtime { return NewOllamaClient(c) },
}

// NewRuntime builds the runtime registered for provider.
func NewRuntime(provider string, cfg RuntimeConfig) (Runtime, error) {
	f, ok := registry[strings.ToLower(provider)]
	if !ok {
		return nil, errors.WithHintf(
			errors.NewInvalidRequestError("unknown provider %q", provider),
			"supported providers: %s", strings.Join(Providers(), ", "))
	}
	return f(cfg), nil
}

// Providers lists the registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	var got ollamaChatRequest
	url := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             got.Model,
			"message":           map[string]any{"role": "assistant", "content": `{"indicators": []}`},
			"done":              true,
			"prompt_eval_count": 40,
			"eval_count":        8,
		})
	}))
	c := NewOllamaClient(RuntimeConfig{Host: url + "/"})
	req := Prompt{Text: "p"}.Request("llama3.1:8b", 256)
	req.Messages = append([]Message{{Role: "system", Content: "be brief"}}, req.Messages...)

	resp, err := c.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, `{"indicators": []}`, resp.Text())
	assert.Equal(t, 48, resp.Usage.TotalTokens)
	assert.False(t, got.Stream)
	assert.Equal(t, "json", got.Format)
	assert.Len(t, got.Messages, 2)
	assert.EqualValues(t, 256, got.Options["num_predict"])
	assert.EqualValues(t, 0.2, got.Options["temperature"])
}

func TestOllamaMissingModel(t *testing.T) {
	url := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model 'nope' not found"})
	}))
	c := NewOllamaClient(RuntimeConfig{Host: url, RetryMax: 1})
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "nope", Messages: []Message{{Role: "user", Content: "x"}}})
	var mnf *ModelNotFoundError
	require.ErrorAs(t, err, &mnf)
	assert.Contains(t, mnf.Message, "not found")
}

func TestOllamaBadRequest(t *testing.T) {
	url := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid options"})
	}))
	c := NewOllamaClient(RuntimeConfig{Host: url, RetryMax: 1})
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}})
	var br *BadRequestError
	require.ErrorAs(t, err, &br)
}

func TestOllamaUnreachable(t *testing.T) {
	c := NewOllamaClient(RuntimeConfig{Host: "http://127.0.0.1:1", RetryMax: 1})
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}})
	var ue *UnreachableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "http://127.0.0.1:1", ue.Host)
}

func TestOllamaEmptyMessages(t *testing.T) {
	c := NewOllamaClient(RuntimeConfig{})
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m"})
	assert.ErrorContains(t, err, "messages cannot be empty")
}

package ai

import (
	"sort"
	"sync"

	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

// ModelInfo holds context size and pricing used for budget warnings.
// Prices are illustrative; check the provider for current rates.
type ModelInfo struct {
	Name          string  `json:"name"`
	ContextTokens int     `json:"context_tokens"`
	InputPerK     float64 `json:"input_per_k"`
	OutputPerK    float64 `json:"output_per_k"`
}

// DefaultModel is used when no model is configured.
const DefaultModel = "openai/gpt-4o-mini"

var (
	catalogMu sync.RWMutex
	models    = map[string]ModelInfo{
		"openai/gpt-4o-mini":               {Name: "openai/gpt-4o-mini", ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
		"openai/gpt-4o":                    {Name: "openai/gpt-4o", ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},
		"openai/gpt-4.1-mini":              {Name: "openai/gpt-4.1-mini", ContextTokens: 1047576, InputPerK: 0.0004, OutputPerK: 0.0016},
		"anthropic/claude-3.5-sonnet":      {Name: "anthropic/claude-3.5-sonnet", ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
		"anthropic/claude-3-haiku":         {Name: "anthropic/claude-3-haiku", ContextTokens: 200000, InputPerK: 0.00025, OutputPerK: 0.00125},
		"google/gemini-1.5-flash":          {Name: "google/gemini-1.5-flash", ContextTokens: 1000000, InputPerK: 0.000075, OutputPerK: 0.0003},
		"deepseek/deepseek-r1:free":        {Name: "deepseek/deepseek-r1:free", ContextTokens: 128000},
		"meta-llama/llama-3.1-8b-instruct": {Name: "meta-llama/llama-3.1-8b-instruct", ContextTokens: 131072},
		// local tags
		"llama3.1:8b":      {Name: "llama3.1:8b", ContextTokens: 8192},
		"qwen2.5-coder:7b": {Name: "qwen2.5-coder:7b", ContextTokens: 32768},
		"mistral:7b":       {Name: "mistral:7b", ContextTokens: 8192},
		"phi3:mini-128k":   {Name: "phi3:mini-128k", ContextTokens: 128000},
	}
)

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// FitsContext reports whether prompt plus reserved completion tokens fit the
// model window. Unknown models always fit.
func FitsContext(model string, promptTokens, reserve int) bool {
	mi, ok := LookupModel(model)
	if !ok || mi.ContextTokens <= 0 {
		return true
	}
	return promptTokens+reserve <= mi.ContextTokens
}

// MergeCatalogFile merges entries from a JSON object keyed by model name.
func MergeCatalogFile(path string) error {
	var m map[string]ModelInfo
	if err := utils.ReadJSON(path, &m); err != nil {
		return err
	}
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
		}
		models[k] = v
	}
	return nil
}

// Catalog returns the catalog sorted by name.
func Catalog() []ModelInfo {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	out := make([]ModelInfo, 0, len(models))
	for _, v := range models {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/ai"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/quality"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENROUTER_API_KEY", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ai.DefaultModel, c.DefaultModel)
	assert.Equal(t, ai.ProviderOpenRouter, c.DefaultProvider)
	assert.Equal(t, quality.DefaultWeights(), c.Quality)
	assert.Equal(t, monitor.DefaultThresholds(), c.Thresholds)
	assert.Equal(t, monitor.DefaultCapacity, c.HistoryCapacity)
	assert.Equal(t, monitor.StoreFile, c.HistoryStore)
	assert.Equal(t, filepath.Join(home, DirName, "history", "snapshots.json"), c.HistoryPath)
	assert.Contains(t, c.RateWords, "utilization")
}

func TestLoadFileAndEnv(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "default_model: llama3.1:8b\nthresholds:\n  high: 40\nquality:\n  missing_cap: 10\nhistory_store: sqlite\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("DASHLOOM_THRESHOLDS_MEDIUM", "15")
	t.Setenv("DASHLOOM_API_KEY", "sk-env")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "llama3.1:8b", c.DefaultModel)
	assert.Equal(t, 40.0, c.Thresholds.High)
	assert.Equal(t, 15.0, c.Thresholds.Medium)
	assert.Equal(t, 10.0, c.Thresholds.Low)
	assert.Equal(t, 10.0, c.Quality.MissingCap)
	assert.Equal(t, 2.0, c.Quality.MissingPerPct)
	assert.Equal(t, "sk-env", c.APIKey)
	assert.Equal(t, "snapshots.db", filepath.Base(c.HistoryPath))
}

func TestOpenRouterKeyFallback(t *testing.T) {
	isolate(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-or", c.APIKey)
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c, err := Load("")
	require.NoError(t, err)
	c.DefaultModel = "openai/gpt-4o"
	c.Thresholds.High = 75
	require.NoError(t, Save(c, path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", back.DefaultModel)
	assert.Equal(t, 75.0, back.Thresholds.High)
}

func TestRuntimeSettings(t *testing.T) {
	c := &Global{HTTPTimeoutSec: 30, OllamaTimeoutSec: 90, RetryMaxAttempts: 4, RetryBaseDelayMs: 100, APIKey: "k"}
	rc := c.Runtime(ai.ProviderOpenRouter)
	assert.Equal(t, 30*time.Second, rc.HTTPTimeout)
	assert.Equal(t, 4, rc.RetryMax)
	assert.Equal(t, 100*time.Millisecond, rc.BaseDelay)
	assert.Equal(t, 90*time.Second, c.Runtime("ollama").HTTPTimeout)
}

func TestOpenHistory(t *testing.T) {
	c := &Global{HistoryStore: monitor.StoreSQLite, HistoryPath: filepath.Join(t.TempDir(), "h.db"), HistoryCapacity: 5}
	h, store, err := c.OpenHistory(context.Background())
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, 5, h.Capacity())
	assert.Equal(t, 0, h.Len())

	c.HistoryStore = "etcd"
	_, _, err = c.OpenHistory(context.Background())
	assert.Error(t, err)
}

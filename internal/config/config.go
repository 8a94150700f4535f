package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dashloom-cli/internal/ai"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/quality"
	"github.com/KaramelBytes/dashloom-cli/internal/repair"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

// DirName is the per-user directory under $HOME holding config and history.
const DirName = ".dashloom"

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	// ProfileTokens caps the dataset profile embedded in prompts.
	ProfileTokens int `mapstructure:"profile_tokens" yaml:"profile_tokens"`
	// ModelsCatalog is an optional JSON file merged into the model catalog.
	ModelsCatalog string `mapstructure:"models_catalog" yaml:"models_catalog"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Heuristics
	RateWords  []string           `mapstructure:"rate_words" yaml:"rate_words"`
	Quality    quality.Weights    `mapstructure:"quality" yaml:"quality"`
	Thresholds monitor.Thresholds `mapstructure:"thresholds" yaml:"thresholds"`

	// Monitoring history
	HistoryCapacity int    `mapstructure:"history_capacity" yaml:"history_capacity"`
	HistoryStore    string `mapstructure:"history_store" yaml:"history_store"`
	HistoryPath     string `mapstructure:"history_path" yaml:"history_path"`

	// HTTP server
	ServerAddr string `mapstructure:"server_addr" yaml:"server_addr"`
	LogJSON    bool   `mapstructure:"log_json" yaml:"log_json"`
}

// Dir returns ~/.dashloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home dir")
	}
	return filepath.Join(home, DirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dashloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return errors.Wrap(err, "mkdir config dir")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal yaml")
	}
	return errors.Wrap(utils.SafeWriteFile(path, b), "write config")
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so env overrides reach Unmarshal.
	v.SetDefault("api_key", "")
	v.SetDefault("models_catalog", "")
	v.SetDefault("history_path", "")
	v.SetDefault("default_model", ai.DefaultModel)
	v.SetDefault("default_provider", ai.ProviderOpenRouter)
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("profile_tokens", ai.DefaultProfileBudget)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", ai.DefaultOllamaHost)
	v.SetDefault("ollama_timeout_sec", 60)

	v.SetDefault("rate_words", repair.DefaultRateWords)
	nestedDefaults(v, "quality", quality.DefaultWeights())
	nestedDefaults(v, "thresholds", monitor.DefaultThresholds())

	v.SetDefault("history_capacity", monitor.DefaultCapacity)
	v.SetDefault("history_store", monitor.StoreFile)
	v.SetDefault("server_addr", "127.0.0.1:8080")
	v.SetDefault("log_json", false)
}

// nestedDefaults registers every field of def under prefix so that a config
// file overriding one field keeps the defaults of the others.
func nestedDefaults(v *viper.Viper, prefix string, def any) {
	b, err := yaml.Marshal(def)
	if err != nil {
		return
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return
	}
	for k, val := range m {
		v.SetDefault(prefix+"."+k, val)
	}
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DASHLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	// OPENROUTER_API_KEY is the conventional variable; DASHLOOM_API_KEY wins.
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(dir, "history", defaultHistoryFile(c.HistoryStore))
	}
	return &c, nil
}

func defaultHistoryFile(store string) string {
	if store == monitor.StoreSQLite {
		return "snapshots.db"
	}
	return "snapshots.json"
}

// Runtime returns the ai runtime settings for provider.
func (c *Global) Runtime(provider string) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey,
		Host:        c.OllamaHost,
	}
	if strings.EqualFold(provider, ai.ProviderOllama) && c.OllamaTimeoutSec > 0 {
		rc.HTTPTimeout = time.Duration(c.OllamaTimeoutSec) * time.Second
	}
	return rc
}

// Engine builds the repair engine configured with the rate vocabulary.
func (c *Global) Engine() *repair.Engine {
	return repair.New(repair.WithRules(repair.StandardRules(c.RateWords)...))
}

// OpenHistory opens the configured store and seeds a history from it. The
// caller closes the store.
func (c *Global) OpenHistory(ctx context.Context) (*monitor.History, monitor.Store, error) {
	store, err := monitor.OpenStore(c.HistoryStore, c.HistoryPath, monitor.KeepLast(c.HistoryCapacity))
	if err != nil {
		return nil, nil, err
	}
	h, err := monitor.LoadHistory(ctx, store, c.HistoryCapacity)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return h, store, nil
}

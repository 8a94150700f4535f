package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dashloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/dashloom-cli/internal/config"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Dashloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		shown := *cfg
		shown.APIKey = mask(cfg.APIKey)
		b, err := yaml.Marshal(&shown)
		if err != nil {
			return errors.Wrap(err, "marshal config")
		}
		fmt.Print(string(b))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk. Nested keys use a dot, for example
thresholds.high or quality.missing_cap. rate_words takes a comma-separated list.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		pterm.Success.Printf("Saved %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	if section, field, ok := strings.Cut(key, "."); ok {
		switch section {
		case "quality":
			return setNested(&c.Quality, field, val)
		case "thresholds":
			return setNested(&c.Thresholds, field, val)
		}
		return errors.Newf("unknown key: %s", key)
	}

	ints := map[string]*int{
		"max_tokens":          &c.MaxTokens,
		"profile_tokens":      &c.ProfileTokens,
		"http_timeout_sec":    &c.HTTPTimeoutSec,
		"retry_max_attempts":  &c.RetryMaxAttempts,
		"retry_base_delay_ms": &c.RetryBaseDelayMs,
		"retry_max_delay_ms":  &c.RetryMaxDelayMs,
		"ollama_timeout_sec":  &c.OllamaTimeoutSec,
		"history_capacity":    &c.HistoryCapacity,
	}
	if p, ok := ints[key]; ok {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return errors.Newf("invalid int for %s: %v", key, val)
		}
		*p = i
		return nil
	}
	strs := map[string]*string{
		"api_key":        &c.APIKey,
		"default_model":  &c.DefaultModel,
		"models_catalog": &c.ModelsCatalog,
		"ollama_host":    &c.OllamaHost,
		"history_path":   &c.HistoryPath,
		"server_addr":    &c.ServerAddr,
	}
	if p, ok := strs[key]; ok {
		*p = val
		return nil
	}

	switch key {
	case "default_provider":
		p := normalizeProvider(val)
		if p != ai.ProviderOpenRouter && p != ai.ProviderOllama {
			return errors.Newf("invalid default_provider: %s (use openrouter or ollama)", val)
		}
		c.DefaultProvider = p
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return errors.Newf("invalid float for temperature: %v", val)
		}
		c.Temperature = f
	case "history_store":
		if val != monitor.StoreFile && val != monitor.StoreSQLite {
			return errors.Newf("invalid history_store: %s (use file or sqlite)", val)
		}
		c.HistoryStore = val
	case "log_json":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return errors.Newf("invalid bool for log_json: %v", val)
		}
		c.LogJSON = b
	case "rate_words":
		var words []string
		for _, w := range strings.Split(val, ",") {
			if w = strings.TrimSpace(w); w != "" {
				words = append(words, strings.ToLower(w))
			}
		}
		c.RateWords = words
	default:
		return errors.Newf("unknown key: %s", key)
	}
	return nil
}

// setNested sets one yaml-named field of a settings struct.
func setNested(target any, field, val string) error {
	b, err := yaml.Marshal(target)
	if err != nil {
		return err
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return err
	}
	if _, ok := m[field]; !ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return errors.Newf("unknown field %q (known: %s)", field, strings.Join(keys, ", "))
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < 0 {
		return errors.Newf("invalid number for %s: %v", field, val)
	}
	m[field] = f
	b, err = yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, target); err != nil {
		return errors.Wrapf(err, "invalid value for %s", field)
	}
	return nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}

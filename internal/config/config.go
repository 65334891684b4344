// Package config loads and persists homedeck configuration.
// Configuration lives at ~/.homedeck/config.yaml and every value can be
// overridden by environment variables with the HOMEDECK_ prefix
// (e.g. HOMEDECK_LLM_PROVIDERS_ANTHROPIC_API_KEY).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for the homedeck service.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Router    RouterConfig    `mapstructure:"router" yaml:"router"`
	Market    MarketConfig    `mapstructure:"market" yaml:"market"`
	Memory    MemoryConfig    `mapstructure:"memory" yaml:"memory"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Assistant AssistantConfig `mapstructure:"assistant" yaml:"assistant"`
}

// LLMConfig contains configuration for language model providers.
type LLMConfig struct {
	// Providers maps provider names ("ollama", "anthropic") to their settings.
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig contains configuration for a single LLM provider.
type ProviderConfig struct {
	// Endpoint is the API base URL (primarily for local providers).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// APIKey is the authentication key for cloud providers.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// TimeoutSec bounds every call to this provider (default 45).
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec,omitempty"`
}

// RouterConfig contains the tier-to-model mapping for the model router.
// Empty values fall back to the built-in defaults for whichever providers
// are configured.
type RouterConfig struct {
	// LightModel handles cheap sub-tasks (parsing, classification).
	LightModel string `mapstructure:"light_model" yaml:"light_model,omitempty"`
	// StandardModel handles interpretation and summarization.
	StandardModel string `mapstructure:"standard_model" yaml:"standard_model,omitempty"`
	// PremiumModel handles final synthesis and recommendations.
	PremiumModel string `mapstructure:"premium_model" yaml:"premium_model,omitempty"`
	// MaxTokens is the default response budget per call.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
}

// MarketConfig contains settings for the market data feeds.
type MarketConfig struct {
	// QuoteEndpoint is the chart API base URL for price history.
	QuoteEndpoint string `mapstructure:"quote_endpoint" yaml:"quote_endpoint,omitempty"`
	// FundamentalsEndpoint is the company summary API base URL.
	FundamentalsEndpoint string `mapstructure:"fundamentals_endpoint" yaml:"fundamentals_endpoint,omitempty"`
	// CacheTTL is how long quote responses are reused (e.g. "2m").
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl,omitempty"`
	// TimeoutSec bounds every feed call (default 15).
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec,omitempty"`
}

// MemoryConfig contains settings for the JSON memory log.
type MemoryConfig struct {
	// Dir is the directory holding the per-type JSON files.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ServerConfig contains settings for the HTTP API.
type ServerConfig struct {
	// Addr is the listen address for the dashboard API.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the rotating log file.
	File string `mapstructure:"file" yaml:"file"`
}

// AssistantConfig tunes orchestrator behavior.
type AssistantConfig struct {
	// UserName is interpolated into agent prompts when set.
	UserName string `mapstructure:"user_name" yaml:"user_name,omitempty"`
	// MemoryRecall is how many past conversations to surface in general chat.
	MemoryRecall int `mapstructure:"memory_recall" yaml:"memory_recall,omitempty"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	deckDir := filepath.Join(homeDir, ".homedeck")

	return &Config{
		LLM: LLMConfig{
			Providers: map[string]ProviderConfig{
				"ollama": {
					Endpoint:   "http://127.0.0.1:11434",
					TimeoutSec: 45,
				},
				"anthropic": {
					APIKey:     "",
					TimeoutSec: 45,
				},
			},
		},
		Router: RouterConfig{
			MaxTokens: 2048,
		},
		Market: MarketConfig{
			CacheTTL:   2 * time.Minute,
			TimeoutSec: 15,
		},
		Memory: MemoryConfig{
			Dir: filepath.Join(deckDir, "memory"),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8420",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(deckDir, "logs", "homedeck.log"),
		},
		Assistant: AssistantConfig{
			MemoryRecall: 3,
		},
	}
}

// Load reads configuration from the default location (~/.homedeck/config.yaml)
// and merges with environment variables. If no config file exists, one is
// created with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".homedeck", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. A missing file is created with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("HOMEDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Memory.Dir = expandPath(cfg.Memory.Dir)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in zero values left by sparse config files.
func (c *Config) applyDefaults() {
	defaults := Default()
	if c.Router.MaxTokens == 0 {
		c.Router.MaxTokens = defaults.Router.MaxTokens
	}
	if c.Market.CacheTTL == 0 {
		c.Market.CacheTTL = defaults.Market.CacheTTL
	}
	if c.Market.TimeoutSec == 0 {
		c.Market.TimeoutSec = defaults.Market.TimeoutSec
	}
	if c.Memory.Dir == "" {
		c.Memory.Dir = defaults.Memory.Dir
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Assistant.MemoryRecall == 0 {
		c.Assistant.MemoryRecall = defaults.Assistant.MemoryRecall
	}
	for name, p := range c.LLM.Providers {
		if p.TimeoutSec == 0 {
			p.TimeoutSec = 45
			c.LLM.Providers[name] = p
		}
	}
}

// writeConfigFile marshals the config to YAML and writes it to disk.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

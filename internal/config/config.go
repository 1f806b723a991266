// Package config holds application configuration for the secretary service.
// Configuration is loaded from a YAML file (created with defaults on first
// run) and can be overridden by SECRETARY_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/clinvoy/secretary/internal/llm"
)

// Config is the root configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	LLM           LLMConfig           `mapstructure:"llm" yaml:"llm"`
	Agent         AgentConfig         `mapstructure:"agent" yaml:"agent"`
	Classifier    ClassifierConfig    `mapstructure:"classifier" yaml:"classifier"`
	Search        SearchConfig        `mapstructure:"search" yaml:"search"`
	Conversations ConversationsConfig `mapstructure:"conversations" yaml:"conversations"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `mapstructure:"addr" yaml:"addr"`
	// UploadDir is where attachments and uploads are written.
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir"`
	// PublicBaseURL prefixes the URLs returned by the upload endpoint.
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
	// AllowedOrigins is the CORS allow-list.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// LLMConfig contains configuration for language-model providers.
type LLMConfig struct {
	// DefaultProvider selects the provider backing the secretary and the
	// tool-agent (e.g. "mistral", "openai").
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Providers maps provider names to their specific configuration.
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig contains configuration for a specific LLM provider.
type ProviderConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model    string `mapstructure:"model" yaml:"model,omitempty"`
	// TimeoutSec bounds a single chat call. 0 uses the provider default.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec,omitempty"`
}

// ToFactory converts the llm section into the factory's configuration.
func (c LLMConfig) ToFactory() *llm.FactoryConfig {
	providers := make(map[string]llm.ProviderSettings, len(c.Providers))
	for name, p := range c.Providers {
		providers[name] = llm.ProviderSettings{
			Endpoint: p.Endpoint,
			APIKey:   p.APIKey,
			Model:    p.Model,
			Timeout:  time.Duration(p.TimeoutSec) * time.Second,
		}
	}
	return &llm.FactoryConfig{
		DefaultProvider: c.DefaultProvider,
		Providers:       providers,
	}
}

// AgentConfig configures the tool-agent.
type AgentConfig struct {
	// MaxSteps bounds the agent's tool loop.
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
}

// ClassifierConfig selects the hosted image-classification Space.
type ClassifierConfig struct {
	// SpaceID identifies the hosted prediction Space.
	SpaceID string `mapstructure:"space_id" yaml:"space_id"`
	// Endpoint overrides the URL derived from SpaceID.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// SearchConfig configures the web-search tool.
type SearchConfig struct {
	// APIKey authenticates against the search API. Falls back to
	// TAVILY_API_KEY when empty.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// ConversationsConfig bounds the in-memory conversation store.
type ConversationsConfig struct {
	// Capacity is the maximum number of retained conversations.
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8000",
			UploadDir:     "uploads",
			PublicBaseURL: "http://localhost:8000",
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:3001",
			},
		},
		LLM: LLMConfig{
			DefaultProvider: "mistral",
			Providers: map[string]ProviderConfig{
				"mistral": {Model: "mistral-large-latest"},
				"openai":  {Model: "gpt-4o-mini"},
			},
		},
		Agent: AgentConfig{
			MaxSteps: 6,
		},
		Classifier: ClassifierConfig{
			SpaceID: "Viraj2307/Brain-Tumor-Classification",
		},
		Conversations: ConversationsConfig{
			Capacity: 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from ./secretary.yaml, creating it with defaults
// when missing, and merges environment variable overrides.
func Load() (*Config, error) {
	return LoadFromPath("secretary.yaml")
}

// LoadFromPath reads configuration from a specific file path. If the file
// doesn't exist, it is created with default values first.
func LoadFromPath(path string) (*Config, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create config directory: %w", err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: SECRETARY_LLM_PROVIDERS_MISTRAL_API_KEY
	v.SetEnvPrefix("SECRETARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets are omitted from the written defaults file, so viper never
	// learns their keys from it. Bind them explicitly or the env override
	// above is silently ignored for exactly the values it matters most for.
	for _, key := range []string{
		"llm.providers.mistral.api_key",
		"llm.providers.openai.api_key",
		"search.api_key",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

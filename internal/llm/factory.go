package llm

import (
	"fmt"
	"os"
	"time"
)

// FactoryConfig is the provider-agnostic configuration the factory consumes.
// It deliberately mirrors the shape of the application config's llm section
// without importing it, so the package stays leaf-level.
type FactoryConfig struct {
	DefaultProvider string
	Providers       map[string]ProviderSettings
}

// ProviderSettings carries per-provider configuration values.
type ProviderSettings struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// NewProvider creates an LLM provider based on configuration.
func NewProvider(cfg *FactoryConfig) (Provider, error) {
	providerName := cfg.DefaultProvider
	if providerName == "" {
		providerName = "mistral"
	}

	settings := cfg.Providers[providerName]

	// Config key wins, environment variable is the fallback.
	apiKey := settings.APIKey
	if apiKey == "" {
		apiKey = getAPIKeyFromEnv(providerName)
	}

	return NewProviderByName(providerName, &ProviderConfig{
		Name:     providerName,
		Endpoint: settings.Endpoint,
		APIKey:   apiKey,
		Model:    settings.Model,
		Timeout:  settings.Timeout,
	})
}

// getAPIKeyFromEnv retrieves the API key from standard environment variables.
func getAPIKeyFromEnv(providerName string) string {
	envVars := map[string]string{
		"mistral": "MISTRAL_API_KEY",
		"openai":  "OPENAI_API_KEY",
	}
	if envVar, ok := envVars[providerName]; ok {
		return os.Getenv(envVar)
	}
	return ""
}

// NewProviderByName creates a provider by name with the given configuration.
func NewProviderByName(name string, cfg *ProviderConfig) (Provider, error) {
	switch name {
	case "mistral":
		return NewMistralProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", name)
	}
}

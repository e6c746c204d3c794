package llm

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config selects and configures a provider.
type Config struct {
	// Provider is one of anthropic, openai, openrouter or gemini.
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	OpenRouter OpenRouterConfig
	Gemini     GeminiConfig
	Retry      RetryConfig

	// Timeout bounds one call including its retries.
	Timeout time.Duration
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig picks small, cheap models; translation batches are short.
func DefaultConfig() Config {
	return Config{
		Provider:   "anthropic",
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-mini"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.5-flash"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2,
		},
		Timeout: 60 * time.Second,
	}
}

// keyVars names the PRAWKO_* variable holding each provider's API key.
var keyVars = map[string]string{
	"anthropic":  "PRAWKO_ANTHROPIC_API_KEY",
	"openai":     "PRAWKO_OPENAI_API_KEY",
	"openrouter": "PRAWKO_OPENROUTER_API_KEY",
	"gemini":     "PRAWKO_GEMINI_API_KEY",
}

// ConfigFromEnv overlays PRAWKO_* variables on DefaultConfig. Malformed
// numeric values are ignored.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	set := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	set("PRAWKO_LLM_PROVIDER", &cfg.Provider)
	set(keyVars["anthropic"], &cfg.Anthropic.APIKey)
	set("PRAWKO_ANTHROPIC_MODEL", &cfg.Anthropic.Model)
	set(keyVars["openai"], &cfg.OpenAI.APIKey)
	set("PRAWKO_OPENAI_MODEL", &cfg.OpenAI.Model)
	set("PRAWKO_OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	set(keyVars["openrouter"], &cfg.OpenRouter.APIKey)
	set("PRAWKO_OPENROUTER_MODEL", &cfg.OpenRouter.Model)
	set(keyVars["gemini"], &cfg.Gemini.APIKey)
	set("PRAWKO_GEMINI_MODEL", &cfg.Gemini.Model)

	if d, err := time.ParseDuration(os.Getenv("PRAWKO_LLM_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}
	if n, err := strconv.Atoi(os.Getenv("PRAWKO_LLM_ATTEMPTS")); err == nil && n > 0 {
		cfg.Retry.MaxAttempts = n
	}
	return cfg
}

// DiscoverConfig falls back to the vendors' own key variables, trying
// ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY and OPENROUTER_API_KEY
// in that order.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()
	for _, c := range []struct {
		env, provider string
		dst           *string
	}{
		{"ANTHROPIC_API_KEY", "anthropic", &cfg.Anthropic.APIKey},
		{"OPENAI_API_KEY", "openai", &cfg.OpenAI.APIKey},
		{"GEMINI_API_KEY", "gemini", &cfg.Gemini.APIKey},
		{"OPENROUTER_API_KEY", "openrouter", &cfg.OpenRouter.APIKey},
	} {
		if k := os.Getenv(c.env); k != "" {
			cfg.Provider = c.provider
			*c.dst = k
			return cfg, true
		}
	}
	return Config{}, false
}

// Validate reports a missing API key by the variable that should hold it.
func (c Config) Validate() error {
	var key string
	switch c.Provider {
	case "anthropic":
		key = c.Anthropic.APIKey
	case "openai":
		key = c.OpenAI.APIKey
	case "openrouter":
		key = c.OpenRouter.APIKey
	case "gemini":
		key = c.Gemini.APIKey
	default:
		return fmt.Errorf("unknown LLM provider %q", c.Provider)
	}
	if key == "" {
		return fmt.Errorf("%s is required for the %s provider", keyVars[c.Provider], c.Provider)
	}
	return nil
}

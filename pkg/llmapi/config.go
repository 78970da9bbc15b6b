package llmapi

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DefaultBaseURL is the default OpenAI-compatible API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// DefaultModel is the default model to use.
const DefaultModel = "gpt-4o-mini"

// APIConfig holds API configuration settings.
type APIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// GetAPIConfig loads API configuration from environment variables and files
// with defaults. Priority order for API key:
//  1. OPENAI_API_KEY environment variable
//  2. LLM_API_KEY environment variable
//  3. File at ~/.config/astgrep-mcp/api_key (user home directory)
func GetAPIConfig() *APIConfig {
	return &APIConfig{
		APIKey:  loadAPIKey(),
		BaseURL: getEnvWithFallbacks2("OPENAI_BASE_URL", "LLM_ENDPOINT", DefaultBaseURL),
		Model:   getEnvWithFallbacks2("OPENAI_MODEL", "LLM_MODEL", DefaultModel),
	}
}

// Validate checks that required configuration values are present.
func (c *APIConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required: set OPENAI_BASE_URL")
	}
	// Local endpoints (ollama, llama.cpp) commonly run without a key, so an
	// empty APIKey is allowed.
	return nil
}

// loadAPIKey attempts to load an API key from environment or file.
func loadAPIKey() string {
	if key := getEnvWithFallbacks("OPENAI_API_KEY", "LLM_API_KEY"); key != "" {
		return key
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeKeyFile := filepath.Join(home, ".config", "astgrep-mcp", "api_key")
		if key := loadAPIKeyFromFile(homeKeyFile); key != "" {
			return key
		}
	}

	return ""
}

// loadAPIKeyFromFile reads an API key from a file, trimming whitespace.
func loadAPIKeyFromFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// getEnvWithFallbacks returns the first non-empty environment variable.
func getEnvWithFallbacks(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// getEnvWithFallbacks2 is getEnvWithFallbacks with a trailing default.
func getEnvWithFallbacks2(key, fallbackKey, defaultValue string) string {
	if value := getEnvWithFallbacks(key, fallbackKey); value != "" {
		return value
	}
	return defaultValue
}

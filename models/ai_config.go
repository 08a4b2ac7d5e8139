package models

import (
	"time"

	"ceaiinsights/internal/config"
)

// AIConfig holds the settings a model adapter needs to reach its provider
type AIConfig struct {
	Provider      string
	APIKey        string
	Model         string
	BaseURL       string // optional override, used by tests and proxies
	SystemContext string
	MaxTokens     int
	Temperature   float64
	PromptsDir    string // Directory for external prompt files; empty uses the embedded template
	Timeout       time.Duration
}

// DefaultAIConfig returns sensible defaults for AI configuration
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		Provider:      config.ProviderGemini,
		Model:         "gemini-2.0-flash",
		SystemContext: "You are an advanced data analysis assistant",
		MaxTokens:     8192,
		Temperature:   0.2,
		Timeout:       2 * time.Minute,
	}
}

// AIConfigFrom projects the application configuration onto the adapter settings,
// picking the API key that belongs to the selected provider.
func AIConfigFrom(cfg config.AIConfig) *AIConfig {
	apiKey := cfg.GeminiKey
	if cfg.Provider == config.ProviderOpenAI {
		apiKey = cfg.OpenAIKey
	}
	return &AIConfig{
		Provider:      cfg.Provider,
		APIKey:        apiKey,
		Model:         cfg.Model,
		BaseURL:       cfg.BaseURL,
		SystemContext: cfg.SystemContext,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		PromptsDir:    cfg.PromptsDir,
		Timeout:       cfg.Timeout,
	}
}

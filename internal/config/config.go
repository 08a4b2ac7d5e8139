package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"ceaiinsights/internal/errors"
)

// Supported model providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	AI       AIConfig       `validate:"required"`
	Analysis AnalysisConfig `validate:"required"`
	Server   ServerConfig   `validate:"required"`
	Upload   UploadConfig   `validate:"required"`
	Logging  LoggingConfig
}

// DatabaseConfig holds analysis history storage settings. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL    string
	Driver string
}

// AIConfig holds AI/LLM related settings
type AIConfig struct {
	Provider      string `validate:"required"`
	GeminiKey     string
	OpenAIKey     string
	Model         string `validate:"required"`
	BaseURL       string
	SystemContext string
	MaxTokens     int
	Temperature   float64
	PromptsDir    string
	Timeout       time.Duration
}

// AnalysisConfig holds the orchestrator's retry and concurrency settings
type AnalysisConfig struct {
	MaxAttempts   int
	RetryDelay    time.Duration
	MaxConcurrent int
	Timeout       time.Duration
	HistoryLimit  int
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port       string `validate:"required"`
	APIPort    string
	GinMode    string
	SessionTTL time.Duration
}

// UploadConfig holds file intake limits
type UploadConfig struct {
	MaxFileSize int64
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	aiConfig, err := loadAIConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AI configuration")
	}
	config.AI = *aiConfig

	config.Database = *loadDatabaseConfig()
	config.Analysis = *loadAnalysisConfig()
	config.Server = *loadServerConfig()
	config.Upload = *loadUploadConfig()
	config.Logging = *loadLoggingConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:    getEnvOrDefault("DATABASE_URL", ""),
		Driver: getEnvOrDefault("DATABASE_DRIVER", "postgres"),
	}
}

func loadAIConfig() (*AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderGemini))

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		geminiKey = os.Getenv("GOOGLE_API_KEY")
	}
	openaiKey := os.Getenv("OPENAI_API_KEY")

	var defaultModel string
	switch provider {
	case ProviderGemini:
		if geminiKey == "" {
			return nil, errors.ConfigInvalid("GEMINI_API_KEY (or GOOGLE_API_KEY) is required for the gemini provider")
		}
		defaultModel = "gemini-2.0-flash"
	case ProviderOpenAI:
		if openaiKey == "" {
			return nil, errors.ConfigInvalid("OPENAI_API_KEY is required for the openai provider")
		}
		defaultModel = "gpt-4o-mini"
	default:
		return nil, errors.ConfigInvalid("AI_PROVIDER must be gemini or openai, got " + provider)
	}

	return &AIConfig{
		Provider:      provider,
		GeminiKey:     geminiKey,
		OpenAIKey:     openaiKey,
		Model:         getEnvOrDefault("LLM_MODEL", defaultModel),
		BaseURL:       getEnvOrDefault("LLM_BASE_URL", ""),
		SystemContext: "You are an advanced data analysis assistant",
		MaxTokens:     getEnvIntOrDefault("MAX_TOKENS", 8192),
		Temperature:   getEnvFloatOrDefault("TEMPERATURE", 0.2),
		PromptsDir:    getEnvOrDefault("PROMPTS_DIR", ""),
		Timeout:       getEnvDurationOrDefault("LLM_TIMEOUT", 2*time.Minute),
	}, nil
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		MaxAttempts:   getEnvIntOrDefault("RETRY_MAX_ATTEMPTS", 3),
		RetryDelay:    getEnvDurationOrDefault("RETRY_DELAY", 2*time.Second),
		MaxConcurrent: getEnvIntOrDefault("MAX_CONCURRENT_ANALYSES", 4),
		Timeout:       getEnvDurationOrDefault("ANALYSIS_TIMEOUT", 3*time.Minute),
		HistoryLimit:  getEnvIntOrDefault("HISTORY_LIMIT", 200),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:       getEnvOrDefault("PORT", "8080"),
		APIPort:    getEnvOrDefault("API_PORT", "8081"),
		GinMode:    getEnvOrDefault("GIN_MODE", "release"),
		SessionTTL: getEnvDurationOrDefault("SESSION_TTL", 2*time.Hour),
	}
}

func loadUploadConfig() *UploadConfig {
	return &UploadConfig{
		MaxFileSize: int64(getEnvIntOrDefault("MAX_FILE_SIZE_MB", 10)) << 20,
	}
}

func loadLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format: getEnvOrDefault("LOG_FORMAT", "json"),
	}
}

func validateConfig(config *Config) error {
	if config.AI.Model == "" {
		return errors.ConfigInvalid("LLM model is required")
	}
	if config.Analysis.MaxAttempts < 1 {
		return errors.ConfigInvalid("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if config.Analysis.RetryDelay < 0 {
		return errors.ConfigInvalid("RETRY_DELAY must not be negative")
	}
	if config.Analysis.MaxConcurrent < 1 {
		return errors.ConfigInvalid("MAX_CONCURRENT_ANALYSES must be at least 1")
	}
	if config.Upload.MaxFileSize <= 0 {
		return errors.ConfigInvalid("MAX_FILE_SIZE_MB must be positive")
	}
	switch config.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return errors.ConfigInvalid("DATABASE_DRIVER must be postgres or sqlite3")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

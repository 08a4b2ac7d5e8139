package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ceaiinsights/internal"
	apperrors "ceaiinsights/internal/errors"
	"ceaiinsights/models"

	"github.com/tidwall/gjson"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// StructuredClient provides typed JSON responses from OpenAI chat completions
type StructuredClient[T any] struct {
	OpenAIClient  *OpenAIClient
	PromptManager *PromptManager
	SystemContext string
	httpClient    *http.Client
	logger        *internal.Logger
}

// OpenAIClient holds the connection settings for the chat completions API
type OpenAIClient struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	Model       string
}

// ResponseFormat forces structured output from GPT models
type ResponseFormat struct {
	Type string `json:"type"` // "json_object" for structured output
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	Temperature         float64        `json:"temperature,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	ResponseFormat      ResponseFormat `json:"response_format"`
}

// NewStructuredClient creates a new structured client
func NewStructuredClient[T any](config *models.AIConfig, logger *internal.Logger) *StructuredClient[T] {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	logger = logger.Named("StructuredClient")

	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	logger.Info("Initializing client with model=%s, temp=%.2f, maxTokens=%d, timeout=%v",
		config.Model, config.Temperature, config.MaxTokens, timeout)

	return &StructuredClient[T]{
		OpenAIClient: &OpenAIClient{
			APIKey:      config.APIKey,
			BaseURL:     baseURL,
			Timeout:     timeout,
			Temperature: config.Temperature,
			MaxTokens:   config.MaxTokens,
			Model:       config.Model,
		},
		PromptManager: NewPromptManager(config.PromptsDir, logger),
		SystemContext: config.SystemContext,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// GetJsonResponseWithContext makes a typed LLM call with context support
func (client *StructuredClient[T]) GetJsonResponseWithContext(ctx context.Context, prompt string, systemMessage string) (*T, error) {
	content, err := client.complete(ctx, prompt, systemMessage)
	if err != nil {
		return nil, err
	}

	result, err := decodeStructured[T](content)
	if err != nil {
		client.logger.Error("Failed to decode model content: %v", err)
		return nil, err
	}
	return result, nil
}

// GetJsonResponseFromPromptWithContext loads external prompt and gets structured response with context
func (client *StructuredClient[T]) GetJsonResponseFromPromptWithContext(ctx context.Context, promptName string, replacements map[string]string) (*T, error) {
	prompt, err := client.PromptManager.RenderPrompt(promptName, replacements)
	if err != nil {
		client.logger.Error("Failed to load/render prompt %s: %v", promptName, err)
		return nil, fmt.Errorf("failed to load/render prompt: %w", err)
	}

	client.logger.Debug("Rendered prompt %s length: %d characters", promptName, len(prompt))
	return client.GetJsonResponseWithContext(ctx, prompt, "")
}

func (client *StructuredClient[T]) complete(ctx context.Context, prompt string, systemMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, client.OpenAIClient.Timeout)
	defer cancel()

	systemContent := systemMessage
	if systemContent == "" {
		systemContent = client.SystemContext
	}
	// JSON mode requires the word "JSON" somewhere in the messages
	if !strings.Contains(strings.ToLower(systemContent), "json") {
		systemContent = strings.TrimSpace(systemContent + "\n\nRespond with a valid JSON object.")
	}

	reqBody := chatRequest{
		Model: client.OpenAIClient.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemContent},
			{Role: "user", Content: prompt},
		},
		Temperature:         client.OpenAIClient.Temperature,
		MaxCompletionTokens: client.OpenAIClient.MaxTokens,
		ResponseFormat:      ResponseFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.OpenAIClient.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+client.OpenAIClient.APIKey)

	client.logger.Info("Sending request to %s - promptLength=%d", client.OpenAIClient.Model, len(prompt))

	resp, err := client.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("request timeout after %v: %w", client.OpenAIClient.Timeout, err)
		}
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyOpenAIError(resp.StatusCode, body)
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("no choices in OpenAI response")
	}

	usage := gjson.GetBytes(body, "usage")
	client.logger.Info("Response received - contentLength=%d, promptTokens=%d, completionTokens=%d",
		len(content.String()), usage.Get("prompt_tokens").Int(), usage.Get("completion_tokens").Int())

	return content.String(), nil
}

// classifyOpenAIError maps an error response onto the application's error codes
func classifyOpenAIError(status int, body []byte) error {
	message := gjson.GetBytes(body, "error.message").String()
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	cause := fmt.Errorf("OpenAI API error (status %d): %s", status, message)

	switch status {
	case http.StatusServiceUnavailable:
		return apperrors.ModelOverloaded("openai", cause)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.InvalidCredentials("openai", cause)
	default:
		return apperrors.ExternalServiceError("openai", cause)
	}
}

// OpenAISummarizer adapts the structured client to ports.SummaryGenerator
type OpenAISummarizer struct {
	client *StructuredClient[models.AnalysisOutput]
}

// NewOpenAISummarizer creates a summary generator backed by OpenAI chat completions
func NewOpenAISummarizer(config *models.AIConfig, logger *internal.Logger) *OpenAISummarizer {
	return &OpenAISummarizer{client: NewStructuredClient[models.AnalysisOutput](config, logger)}
}

// GenerateSummary renders the CEAI prompt around the CSV text and asks for a summary
func (s *OpenAISummarizer) GenerateSummary(ctx context.Context, input models.AnalysisInput) (*models.AnalysisOutput, error) {
	return s.client.GetJsonResponseFromPromptWithContext(ctx, PromptCEAIAnalysis, map[string]string{
		PlaceholderCSVData: input.CSVData,
	})
}

// Provider returns the provider name recorded in analysis history
func (s *OpenAISummarizer) Provider() string { return "openai" }

// Model returns the configured model name
func (s *OpenAISummarizer) Model() string { return s.client.OpenAIClient.Model }

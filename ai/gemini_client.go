package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ceaiinsights/internal"
	apperrors "ceaiinsights/internal/errors"
	"ceaiinsights/models"

	"google.golang.org/genai"
)

// GeminiClient generates CEAI summaries with Google's Gemini API
type GeminiClient struct {
	client        *genai.Client
	model         string
	temperature   float32
	maxTokens     int32
	systemContext string
	prompts       *PromptManager
	logger        *internal.Logger
}

// NewGeminiClient creates a Gemini-backed summary generator
func NewGeminiClient(ctx context.Context, config *models.AIConfig, logger *internal.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	logger = logger.Named("GeminiClient")

	if config.APIKey == "" {
		return nil, apperrors.ConfigInvalid("Gemini API key is required")
	}

	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	logger.Info("Initialized Gemini client with model=%s, temp=%.2f, maxTokens=%d", model, config.Temperature, config.MaxTokens)

	return &GeminiClient{
		client:        client,
		model:         model,
		temperature:   float32(config.Temperature),
		maxTokens:     int32(config.MaxTokens),
		systemContext: config.SystemContext,
		prompts:       NewPromptManager(config.PromptsDir, logger),
		logger:        logger,
	}, nil
}

// summarySchema constrains the model to a single string field
func summarySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {
				Type:        genai.TypeString,
				Description: "A plain text summary report of the CEAI survey data. Headings in ALL UPPERCASE. No Markdown.",
			},
		},
		Required: []string{"summary"},
	}
}

// GenerateSummary renders the CEAI prompt around the CSV text and asks Gemini for a summary
func (g *GeminiClient) GenerateSummary(ctx context.Context, input models.AnalysisInput) (*models.AnalysisOutput, error) {
	prompt, err := g.prompts.RenderPrompt(PromptCEAIAnalysis, map[string]string{
		PlaceholderCSVData: input.CSVData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load/render prompt: %w", err)
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   summarySchema(),
	}
	if g.maxTokens > 0 {
		genConfig.MaxOutputTokens = g.maxTokens
	}
	if g.systemContext != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(g.systemContext, genai.RoleUser)
	}

	g.logger.Info("Sending request to %s - promptLength=%d", g.model, len(prompt))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), genConfig)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if resp.UsageMetadata != nil {
		g.logger.Info("Response received - promptTokens=%d, candidateTokens=%d",
			resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount)
	}

	return decodeStructured[models.AnalysisOutput](resp.Text())
}

// Provider returns the provider name recorded in analysis history
func (g *GeminiClient) Provider() string { return "gemini" }

// Model returns the configured model name
func (g *GeminiClient) Model() string { return g.model }

// classifyGeminiError maps SDK errors onto the application's error codes
func classifyGeminiError(err error) error {
	var (
		code    int
		status  string
		message string
	)

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status, message = apiErr.Code, apiErr.Status, apiErr.Message
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status, message = apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message
	default:
		message = err.Error()
	}

	switch {
	case code == http.StatusServiceUnavailable || status == "UNAVAILABLE":
		return apperrors.ModelOverloaded("gemini", err)
	case code == http.StatusUnauthorized || code == http.StatusForbidden ||
		status == "UNAUTHENTICATED" || status == "PERMISSION_DENIED" ||
		strings.Contains(message, "API key not valid"):
		return apperrors.InvalidCredentials("gemini", err)
	default:
		return apperrors.ExternalServiceError("gemini", err)
	}
}

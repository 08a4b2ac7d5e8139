package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"ceaiinsights/internal"
	apperrors "ceaiinsights/internal/errors"
	"ceaiinsights/models"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSummarizer(t *testing.T, handler http.HandlerFunc) *OpenAISummarizer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOpenAISummarizer(&models.AIConfig{
		Provider:    "openai",
		APIKey:      "sk-test",
		Model:       "gpt-test",
		BaseURL:     srv.URL,
		Temperature: 0.2,
		MaxTokens:   512,
		Timeout:     5 * time.Second,
	}, internal.NewNopLogger())
}

func TestOpenAISummarizerSendsPromptAndParsesSummary(t *testing.T) {
	var captured chatRequest
	summarizer := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"summary\":\"OVERALL RESULTS\\nAll good\"}"}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`))
	})

	out, err := summarizer.GenerateSummary(context.Background(), models.AnalysisInput{CSVData: "Department,Q1\nHR,4"})
	require.NoError(t, err)
	assert.Equal(t, "OVERALL RESULTS\nAll good", out.Summary)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "gpt-test", captured.Model)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	assert.Contains(t, strings.ToLower(captured.Messages[0].Content), "json")
	assert.Contains(t, captured.Messages[1].Content, "Department,Q1\nHR,4")
	assert.Equal(t, "openai", summarizer.Provider())
	assert.Equal(t, "gpt-test", summarizer.Model())
}

func TestOpenAISummarizerMissingSummaryIsNotAnError(t *testing.T) {
	summarizer := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	})

	out, err := summarizer.GenerateSummary(context.Background(), models.AnalysisInput{CSVData: "a"})
	require.NoError(t, err)
	assert.Empty(t, out.Summary)
}

func TestOpenAISummarizerClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
	}{
		{"overloaded", http.StatusServiceUnavailable, apperrors.CodeModelOverloaded},
		{"bad key", http.StatusUnauthorized, apperrors.CodeInvalidCredentials},
		{"server error", http.StatusInternalServerError, apperrors.CodeExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summarizer := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"upstream said no"}}`))
			})

			_, err := summarizer.GenerateSummary(context.Background(), models.AnalysisInput{CSVData: "a"})
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
			assert.Contains(t, err.Error(), "upstream said no")
		})
	}
}

func TestOpenAISummarizerNoChoices(t *testing.T) {
	summarizer := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := summarizer.GenerateSummary(context.Background(), models.AnalysisInput{CSVData: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

// TestLiveOpenAISummary performs a live call against OpenAI when a key is configured
func TestLiveOpenAISummary(t *testing.T) {
	_ = godotenv.Load("../.env")

	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("Skipping live test: OPENAI_API_KEY not set")
	}

	config := models.DefaultAIConfig()
	config.Provider = "openai"
	config.APIKey = os.Getenv("OPENAI_API_KEY")
	config.Model = "gpt-4o-mini"

	summarizer := NewOpenAISummarizer(config, internal.NewNopLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	out, err := summarizer.GenerateSummary(ctx, models.AnalysisInput{
		CSVData: "Department,Management Support,Autonomy,Rewards,Time Availability,Organizational Boundaries\nHR,4,4,3,3,4\nIT,5,4,4,3,4\n",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Summary)
	t.Logf("Summary:\n%s", out.Summary)
}

package ai

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ceaiinsights/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEmbeddedPromptEmbedsCSVVerbatim(t *testing.T) {
	pm := NewPromptManager("", internal.NewNopLogger())
	csv := "Department,Q1\nHR,{CSV_DATA}\nIT,4"

	prompt, err := pm.RenderPrompt(PromptCEAIAnalysis, map[string]string{PlaceholderCSVData: csv})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(strings.TrimSpace(prompt), csv))
	assert.Equal(t, 1, strings.Count(prompt, "{CSV_DATA}"), "placeholder inside the data must survive untouched")
	assert.Contains(t, prompt, "DEPARTMENT BREAKDOWN:")
}

func TestRenderRequiresDeclaredPlaceholders(t *testing.T) {
	pm := NewPromptManager("", internal.NewNopLogger())
	_, err := pm.RenderPrompt(PromptCEAIAnalysis, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CSV_DATA")
}

func TestPromptsDirOverridesEmbedded(t *testing.T) {
	dir := t.TempDir()
	override := "name: ceai_analysis\noutput_field: summary\nplaceholders: [CSV_DATA]\ntemplate: \"Summarize: {CSV_DATA}\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ceai_analysis.yaml"), []byte(override), 0o644))

	pm := NewPromptManager(dir, internal.NewNopLogger())
	prompt, err := pm.RenderPrompt(PromptCEAIAnalysis, map[string]string{PlaceholderCSVData: "a,b"})
	require.NoError(t, err)
	assert.Equal(t, "Summarize: a,b", prompt)
}

func TestPromptsDirFallsBackToEmbedded(t *testing.T) {
	pm := NewPromptManager(t.TempDir(), internal.NewNopLogger())
	tmpl, err := pm.LoadPrompt(PromptCEAIAnalysis)
	require.NoError(t, err)
	assert.Equal(t, "summary", tmpl.OutputField)
}

func TestLoadPromptRejectsUnusedPlaceholder(t *testing.T) {
	dir := t.TempDir()
	bad := "name: broken\nplaceholders: [CSV_DATA]\ntemplate: \"no data here\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(bad), 0o644))

	_, err := NewPromptManager(dir, internal.NewNopLogger()).LoadPrompt("broken")
	require.Error(t, err)
}

func TestLoadPromptUnknownName(t *testing.T) {
	_, err := NewPromptManager("", internal.NewNopLogger()).LoadPrompt("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

package ai

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ceaiinsights/internal"

	"gopkg.in/yaml.v3"
)

// Prompt names and placeholders shipped with the application
const (
	PromptCEAIAnalysis = "ceai_analysis"
	PlaceholderCSVData = "CSV_DATA"
)

//go:embed prompts/*.yaml
var embeddedPrompts embed.FS

// Global map to track initialized prompt directories (to avoid duplicate logs)
var (
	initializedDirs   = make(map[string]bool)
	initializedDirsMu sync.Mutex
)

// PromptTemplate is one prompt artifact as stored on disk
type PromptTemplate struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	OutputField  string   `yaml:"output_field"`
	Placeholders []string `yaml:"placeholders"`
	Template     string   `yaml:"template"`
}

// PromptManager loads prompt templates from PromptsDir, falling back to the
// templates compiled into the binary
type PromptManager struct {
	PromptsDir string
	logger     *internal.Logger
}

// NewPromptManager creates a prompt manager
func NewPromptManager(promptsDir string, logger *internal.Logger) *PromptManager {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	logger = logger.Named("PromptManager")

	initializedDirsMu.Lock()
	if !initializedDirs[promptsDir] {
		initializedDirs[promptsDir] = true
		if promptsDir == "" {
			logger.Info("Using embedded prompt templates")
		} else {
			logger.Info("Initialized for directory: %s", promptsDir)
		}
	}
	initializedDirsMu.Unlock()

	return &PromptManager{PromptsDir: promptsDir, logger: logger}
}

// LoadPrompt loads a prompt template by name
func (pm *PromptManager) LoadPrompt(name string) (*PromptTemplate, error) {
	content, source, err := pm.readPrompt(name)
	if err != nil {
		return nil, err
	}

	var tmpl PromptTemplate
	if err := yaml.Unmarshal(content, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s from %s: %w", name, source, err)
	}
	if strings.TrimSpace(tmpl.Template) == "" {
		return nil, fmt.Errorf("prompt %s from %s has an empty template", name, source)
	}
	for _, placeholder := range tmpl.Placeholders {
		if !strings.Contains(tmpl.Template, "{"+placeholder+"}") {
			return nil, fmt.Errorf("prompt %s from %s declares {%s} but never uses it", name, source, placeholder)
		}
	}

	pm.logger.Debug("Loaded prompt %s from %s", name, source)
	return &tmpl, nil
}

func (pm *PromptManager) readPrompt(name string) ([]byte, string, error) {
	if pm.PromptsDir != "" {
		path := filepath.Join(pm.PromptsDir, name+".yaml")
		content, err := os.ReadFile(path)
		if err == nil {
			return content, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to load prompt %s: %w", name, err)
		}
	}

	content, err := fs.ReadFile(embeddedPrompts, "prompts/"+name+".yaml")
	if err != nil {
		return nil, "", fmt.Errorf("prompt template not found: %s", name)
	}
	return content, "embedded", nil
}

// RenderPrompt replaces {PLACEHOLDER} with values in a single pass, so values that
// themselves contain braces are inserted verbatim
func (pm *PromptManager) RenderPrompt(name string, replacements map[string]string) (string, error) {
	tmpl, err := pm.LoadPrompt(name)
	if err != nil {
		return "", err
	}
	return tmpl.Render(replacements)
}

// Render fills the template. Every declared placeholder must be supplied.
func (t *PromptTemplate) Render(replacements map[string]string) (string, error) {
	for _, placeholder := range t.Placeholders {
		if _, ok := replacements[placeholder]; !ok {
			return "", fmt.Errorf("prompt %s: missing value for {%s}", t.Name, placeholder)
		}
	}

	pairs := make([]string, 0, len(replacements)*2)
	for placeholder, value := range replacements {
		pairs = append(pairs, "{"+placeholder+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(t.Template), nil
}

package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// cleanJSONContent strips markdown code fences and leading chatter that models
// sometimes wrap around a JSON object
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	// Drop a chatty first line before the object, e.g. "Here is the JSON:"
	if !strings.HasPrefix(content, "{") {
		if idx := strings.Index(content, "\n{"); idx >= 0 {
			content = content[idx+1:]
		}
	}

	return content
}

// decodeStructured parses the model's text content into T. Missing fields are
// left zero and empty content yields a zero T; anything else that is not a JSON
// object is an error.
func decodeStructured[T any](content string) (*T, error) {
	cleaned := cleanJSONContent(content)
	if cleaned == "" {
		return new(T), nil
	}
	if !strings.HasPrefix(cleaned, "{") {
		return nil, fmt.Errorf("model returned non-JSON content (%d bytes)", len(content))
	}

	var result T
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON content into result type: %w", err)
	}
	return &result, nil
}

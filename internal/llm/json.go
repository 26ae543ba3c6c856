package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeJSON unmarshals a model-produced JSON payload into v. Models routinely
// wrap JSON in markdown fences or emit slightly malformed output, so the raw
// text is unwrapped and, when plain decoding fails, repaired before giving up.
func DecodeJSON(content string, v any) error {
	text := stripFences(strings.TrimSpace(content))
	if text == "" {
		return fmt.Errorf("empty content")
	}

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	if obj := extractJSONObject(text); obj != "" {
		if err := json.Unmarshal([]byte(obj), v); err == nil {
			return nil
		}
		text = obj
	}

	fixed, repairErr := jsonrepair.JSONRepair(text)
	if repairErr != nil {
		return fmt.Errorf("json repair: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(fixed), v); err != nil {
		return fmt.Errorf("decode repaired json: %w", err)
	}
	return nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ExtractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object in text.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no json object in response")
	}
	return s[start : end+1], nil
}

// SchemaError lists every schema violation found in a decoded document.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "schema validation failed: " + strings.Join(e.Violations, "; ")
}

// DecodeJSON extracts the JSON object from text, validates it against schema
// when one is given and unmarshals it into out.
func DecodeJSON(text string, schema map[string]any, out any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if schema != nil {
		result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
		if err != nil {
			return fmt.Errorf("validate json: %w", err)
		}
		if !result.Valid() {
			violations := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				violations = append(violations, e.String())
			}
			return &SchemaError{Violations: violations}
		}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"semsql/internal/domain"
)

// ErrNoJSONObject is returned when model output contains no brace-delimited
// object.
var ErrNoJSONObject = errors.New("no JSON object in model output")

// ExtractJSON returns the text from the first '{' to the last '}' inclusive.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || start >= end {
		return "", ErrNoJSONObject
	}
	return text[start : end+1], nil
}

// ParseGeneratedQuery extracts and decodes the generated document from raw
// model output.
func ParseGeneratedQuery(text string) (*domain.GeneratedQuery, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var gq domain.GeneratedQuery
	if err := json.Unmarshal([]byte(raw), &gq); err != nil {
		return nil, fmt.Errorf("decode generated query: %w", err)
	}
	return &gq, nil
}

package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n?```")

// ExtractJSON finds the JSON object in agent text: the first fenced
// block that parses, else the span from the first '{' to the last '}'.
func ExtractJSON(text string) ([]byte, error) {
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in agent output")
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, fmt.Errorf("agent output contains malformed JSON")
	}
	return []byte(candidate), nil
}

package perception

import (
	"regexp"
	"strings"
)

// fencedObject matches the first fenced block (optionally tagged json)
// holding an object. The object match is non-greedy.
var fencedObject = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON pulls a JSON object out of a model response that may wrap it
// in prose or markdown. Fallbacks, in order:
//  1. the first fenced block containing {...}
//  2. the span from the first '{' to the last '}'
//  3. the trimmed text if it starts with '{' and ends with '}'
//  4. the text unchanged
//
// The result is not validated; callers decode it and handle errors.
func ExtractJSON(text string) string {
	if text == "" {
		return ""
	}

	if m := fencedObject.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}

	return text
}

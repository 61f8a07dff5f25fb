package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when no strategy recovers a JSON object from model output
var ErrNoJSONObject = errors.New("no JSON object found in model output")

// Supports: ```json {...} ```, ```{...}```, or ```\n{...}\n```
var markdownFence = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// jsonStrategy proposes candidate JSON documents from raw model output
type jsonStrategy struct {
	name       string
	candidates func(input string) []string
}

// Tried in order, first successful decode wins
var aiJSONStrategies = []jsonStrategy{
	{name: "direct", candidates: directCandidate},
	{name: "markdown", candidates: extractFromMarkdown},
	{name: "braces", candidates: extractJSONFromText},
}

// ParseAIJSONObject extracts a JSON object from AI output that may contain:
// - Pure JSON
// - JSON wrapped in markdown code blocks (```json ... ```)
// - JSON with surrounding text
//
// It reports which strategy matched. Numbers are kept as json.Number.
func ParseAIJSONObject(input string) (map[string]any, string, error) {
	if strings.TrimSpace(input) == "" {
		return nil, "", fmt.Errorf("empty input: %w", ErrNoJSONObject)
	}

	for _, strategy := range aiJSONStrategies {
		// An empty object only wins when no later candidate of the same strategy carries fields
		var empty map[string]any
		for _, candidate := range strategy.candidates(input) {
			obj, ok := decodeObject(candidate)
			if !ok {
				continue
			}
			if len(obj) > 0 {
				return obj, strategy.name, nil
			}
			if empty == nil {
				empty = obj
			}
		}
		if empty != nil {
			return empty, strategy.name, nil
		}
	}

	return nil, "", fmt.Errorf("%w: %s", ErrNoJSONObject, truncateString(input, 100))
}

func decodeObject(candidate string) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(candidate)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	// Reject trailing garbage after the object
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, false
	}
	return obj, true
}

func directCandidate(input string) []string {
	return []string{strings.TrimSpace(input)}
}

// extractFromMarkdown extracts the body of the first fenced code block
func extractFromMarkdown(input string) []string {
	matches := markdownFence.FindStringSubmatch(input)
	if len(matches) < 2 {
		return nil
	}
	content := strings.TrimSpace(matches[1])
	if content == "" {
		return nil
	}
	return []string{content}
}

// extractJSONFromText finds JSON objects in surrounding text: the balanced span starting
// at every '{' in order, then the greedy span from the first '{' to the last '}'
func extractJSONFromText(input string) []string {
	first := strings.Index(input, "{")
	if first < 0 {
		return nil
	}

	var candidates []string
	seen := make(map[string]bool)
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			candidates = append(candidates, c)
		}
	}

	for i, ch := range input {
		if ch == '{' {
			add(extractBalancedBraces(input[i:], '{', '}'))
		}
	}
	if end := strings.LastIndex(input, "}"); end > first {
		add(input[first : end+1])
	}
	return candidates
}

// extractBalancedBraces extracts content with balanced braces
func extractBalancedBraces(input string, open, close rune) string {
	if len(input) == 0 {
		return ""
	}

	depth := 0
	inString := false
	escape := false
	start := 0

	for i, ch := range input {
		if escape {
			escape = false
			continue
		}

		if ch == '\\' {
			escape = true
			continue
		}

		if ch == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if ch == open {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == close {
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}

	return ""
}

// truncateString truncates a string to maxLen bytes without splitting a rune
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// PrettyPrintJSON formats JSON with indentation
func PrettyPrintJSON(v interface{}) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

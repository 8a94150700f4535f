// Package extract recovers a structured plan from free-form model output.
//
// Model responses routinely wrap the JSON object in markdown fences, surround
// it with prose, or leave a trailing comma behind. Extract tolerates all three
// and gives up cleanly on anything else.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

// Plan is a decoded JSON object: numbers are float64, nested values are
// map[string]any and []any. Treat it as immutable.
type Plan map[string]any

// ErrNoPlan is returned by Parse when no structured object can be recovered.
var ErrNoPlan = errors.New("no structured plan found in model output")

var (
	openFence     = regexp.MustCompile("^```(?:json)?\\s*\\n?")
	closeFence    = regexp.MustCompile("\\n?```\\s*$")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// Extract returns the first JSON object found in text. It tries, in order:
// the fence-stripped text as a whole, the first balanced {...} span, and
// that span with trailing commas removed.
func Extract(text string) (Plan, bool) {
	text = strings.TrimSpace(text)
	text = openFence.ReplaceAllString(text, "")
	text = strings.TrimSpace(closeFence.ReplaceAllString(text, ""))

	if p, ok := decode(text); ok {
		return p, true
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}
	end := matchingBrace(text, start)
	if end < 0 {
		return nil, false
	}
	candidate := text[start : end+1]
	if p, ok := decode(candidate); ok {
		return p, true
	}
	return decode(trailingComma.ReplaceAllString(candidate, "$1"))
}

// Parse is Extract with an error for callers that propagate failures.
func Parse(text string) (Plan, error) {
	p, ok := Extract(text)
	if !ok {
		return nil, errors.WithHint(ErrNoPlan, "the model reply did not contain a JSON object; try again or lower the temperature")
	}
	return p, nil
}

func decode(s string) (Plan, bool) {
	var p Plan
	if err := json.Unmarshal([]byte(s), &p); err != nil || p == nil {
		return nil, false
	}
	return p, true
}

// matchingBrace scans from the '{' at start and returns the index of the brace
// that closes it. Braces inside string literals are ignored; a backslash
// escapes the next byte. Returns -1 when the object never closes.
func matchingBrace(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// String returns the string at key, or "" when absent or not a string.
func (p Plan) String(key string) string {
	s, _ := p[key].(string)
	return s
}

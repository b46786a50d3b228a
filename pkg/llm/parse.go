package llm

import (
	"fmt"
	"regexp"

	"github.com/titanous/json5"
)

// ParseError is raised when an LLM reply cannot be turned into a JSON
// object. Raw holds at most the first 500 characters of the reply.
type ParseError struct {
	Raw string
	Err error
}

const parseErrorRawLimit = 500

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm parse: %v (raw: %q)", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(text string, err error) *ParseError {
	if len(text) > parseErrorRawLimit {
		text = text[:parseErrorRawLimit]
	}
	return &ParseError{Raw: text, Err: err}
}

// Fenced code blocks tagged json or json5, case-insensitive.
var fencedJSONPattern = regexp.MustCompile("(?si)```json5?\\s*\\n?(.*?)```")

// ParseJSONObject extracts a JSON object from assistant text. Strategy:
// every ```json / ```json5 fenced block first, then the whole text parsed
// JSON5-tolerantly. Arrays and scalars are rejected.
func ParseJSONObject(text string) (map[string]any, error) {
	for _, match := range fencedJSONPattern.FindAllStringSubmatch(text, -1) {
		if obj, ok := tryObject(match[1]); ok {
			return obj, nil
		}
	}
	if obj, ok := tryObject(text); ok {
		return obj, nil
	}
	return nil, newParseError(text, fmt.Errorf("response is not a JSON object"))
}

func tryObject(text string) (map[string]any, bool) {
	var v any
	if err := json5.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

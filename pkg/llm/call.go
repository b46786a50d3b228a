package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/template"
)

// ErrLLMFailed wraps the last parse error once every attempt is exhausted.
var ErrLLMFailed = errors.New("llm call failed")

// CallJSON issues the prompt and parses the reply into a JSON object.
// Parse failures re-issue the call up to maxRetries additional times (total
// attempts maxRetries+1), preserving the mode. Transport errors are not
// retried here; retrying those is the calling action's decision.
func (c *Client) CallJSON(ctx context.Context, prompt string, mode Mode, maxRetries int) (map[string]any, error) {
	resolved := c.ResolveMode("", mode)
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastParseErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		text, err := c.complete(ctx, prompt, resolved)
		if err != nil {
			return nil, err
		}

		obj, err := ParseJSONObject(text)
		if err == nil {
			return obj, nil
		}
		lastParseErr = err
		slog.Debug("LLM reply failed JSON parse, retrying",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrLLMFailed, maxRetries+1, lastParseErr)
}

// Info-map keys whose values are re-serialized as indented JSON before
// template substitution, so prompts carry readable multi-line blocks.
var prettyInfoKeys = map[string]bool{
	"avatar_infos":         true,
	"world_info":           true,
	"general_action_infos": true,
	"expanded_info":        true,
}

// RenderTemplate loads the template file and substitutes the info map via
// {{.key}} placeholders (the same syntax the config loader uses for env
// expansion). Unknown placeholders render empty.
func RenderTemplate(path string, info map[string]any) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("llm: loading template: %w", err)
	}

	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return "", fmt.Errorf("llm: parsing template %s: %w", path, err)
	}

	vars := make(map[string]any, len(info))
	for k, v := range info {
		if prettyInfoKeys[k] {
			pretty, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return "", fmt.Errorf("llm: serializing %s: %w", k, err)
			}
			vars[k] = string(pretty)
			continue
		}
		vars[k] = v
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("llm: rendering template %s: %w", path, err)
	}
	return buf.String(), nil
}

// CallWithTemplate renders the template and delegates to CallJSON.
func (c *Client) CallWithTemplate(ctx context.Context, templatePath string, info map[string]any, mode Mode, maxRetries int) (map[string]any, error) {
	prompt, err := RenderTemplate(templatePath, info)
	if err != nil {
		return nil, err
	}
	return c.CallJSON(ctx, prompt, mode, maxRetries)
}

// CallWithTaskName resolves the task's call mode and delegates to
// CallWithTemplate.
func (c *Client) CallWithTaskName(ctx context.Context, task, templatePath string, info map[string]any, maxRetries int) (map[string]any, error) {
	mode := c.ResolveMode(task, ModeDefault)
	return c.CallWithTemplate(ctx, templatePath, info, mode, maxRetries)
}

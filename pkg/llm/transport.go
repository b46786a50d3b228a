package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transport error categories. Actions log these; only the raw message of
// uncategorized errors reaches the event text.
const (
	CategoryInvalidKey   = "invalid API key"
	CategoryAccessDenied = "access denied"
	CategoryNotFound     = "endpoint not found"
	CategoryTimeout      = "timeout"
	CategoryUnreachable  = "cannot reach server"
	CategoryOther        = "error"
)

// TransportError is a categorized upstream failure.
type TransportError struct {
	Category string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport: %s: %v", e.Category, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NormalizeBaseURL appends the chat-completions path when the configured
// base URL does not already end with it.
func NormalizeBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete performs one request-reply against the upstream endpoint, holding
// one concurrency permit for its duration. mode must be concrete.
func (c *Client) complete(ctx context.Context, prompt string, mode Mode) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("llm: acquiring permit: %w", err)
	}
	defer c.sem.Release(1)

	model := c.modelFor(mode)
	started := time.Now()
	text, err := c.post(ctx, model, prompt)
	if c.logger != nil {
		c.logger.Record(model, prompt, text, time.Since(started), err)
	}
	return text, err
}

func (c *Client) post(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("llm: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", categorizeDialError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Category: CategoryOther, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", categorizeStatus(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &TransportError{Category: CategoryOther, Err: fmt.Errorf("malformed response body: %w", err)}
	}
	if parsed.Error != nil {
		return "", &TransportError{Category: CategoryOther, Err: errors.New(parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &TransportError{Category: CategoryOther, Err: errors.New("response has no choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

func categorizeStatus(status int, body []byte) *TransportError {
	msg := strings.TrimSpace(string(body))
	err := fmt.Errorf("status %d: %s", status, msg)
	switch status {
	case http.StatusUnauthorized:
		return &TransportError{Category: CategoryInvalidKey, Err: err}
	case http.StatusForbidden:
		return &TransportError{Category: CategoryAccessDenied, Err: err}
	case http.StatusNotFound:
		return &TransportError{Category: CategoryNotFound, Err: err}
	default:
		return &TransportError{Category: CategoryOther, Err: err}
	}
}

func categorizeDialError(err error) *TransportError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &TransportError{Category: CategoryTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Category: CategoryTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Category: CategoryTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &TransportError{Category: CategoryUnreachable, Err: err}
	}
	if errors.As(err, &urlErr) {
		return &TransportError{Category: CategoryUnreachable, Err: err}
	}
	return &TransportError{Category: CategoryOther, Err: err}
}

// Package llm is the gateway every LLM-backed action goes through: a single
// OpenAI-compatible chat-completions transport, bounded process-wide
// concurrency, JSON response parsing with automatic retry, prompt templates,
// and an async dispatch handle that actions poll across ticks.
package llm

import (
	"net/http"
	"time"

	"github.com/cloudrecess/xiansim/pkg/config"
	"golang.org/x/sync/semaphore"
)

// Mode selects which model serves a call.
type Mode string

// Call modes. ModeDefault resolves per task name via the configured table.
const (
	ModeNormal  Mode = "normal"
	ModeFast    Mode = "fast"
	ModeDefault Mode = "default"
)

// RequestTimeout bounds a single upstream request.
const RequestTimeout = 120 * time.Second

// Client is the process-wide LLM gateway. Safe for concurrent use; the
// semaphore is the only synchronization the simulator relies on.
type Client struct {
	httpClient *http.Client
	url        string
	key        string

	model     string
	fastModel string

	override  Mode            // forces every call when not ModeDefault
	taskModes map[string]Mode // task name → mode, consulted for ModeDefault

	maxParseRetries int
	sem             *semaphore.Weighted
	logger          *CallLogger // nil disables call logging
}

// NewClient builds the gateway from configuration. logger may be nil.
func NewClient(llmCfg config.LLMConfig, aiCfg config.AIConfig, logger *CallLogger) *Client {
	concurrency := int64(aiCfg.MaxConcurrentRequests)
	if concurrency < 1 {
		concurrency = 1
	}

	taskModes := make(map[string]Mode, len(llmCfg.DefaultModes))
	for task, mode := range llmCfg.DefaultModes {
		taskModes[task] = Mode(mode)
	}

	override := Mode(llmCfg.Mode)
	if override != ModeNormal && override != ModeFast {
		override = ModeDefault
	}

	return &Client{
		httpClient:      &http.Client{Timeout: RequestTimeout},
		url:             NormalizeBaseURL(llmCfg.BaseURL),
		key:             llmCfg.Key,
		model:           llmCfg.ModelName,
		fastModel:       llmCfg.FastModelName,
		override:        override,
		taskModes:       taskModes,
		maxParseRetries: aiCfg.MaxParseRetries,
		sem:             semaphore.NewWeighted(concurrency),
		logger:          logger,
	}
}

// MaxParseRetries returns the configured automatic parse-retry count.
func (c *Client) MaxParseRetries() int { return c.maxParseRetries }

// ResolveMode applies the precedence: global override > explicit mode >
// per-task table > normal.
func (c *Client) ResolveMode(task string, mode Mode) Mode {
	if c.override != ModeDefault {
		return c.override
	}
	if mode == ModeNormal || mode == ModeFast {
		return mode
	}
	if m, ok := c.taskModes[task]; ok {
		return m
	}
	return ModeNormal
}

func (c *Client) modelFor(mode Mode) string {
	if mode == ModeFast && c.fastModel != "" {
		return c.fastModel
	}
	return c.model
}

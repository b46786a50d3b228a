package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudrecess/xiansim/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockLLM starts an OpenAI-compatible endpoint whose replies come from
// the responses slice in order (the last one repeats).
func newMockLLM(t *testing.T, responses []string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		require.Equal(t, "user", req.Messages[0].Role)

		n := int(calls.Add(1)) - 1
		if n >= len(responses) {
			n = len(responses) - 1
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": responses[n]}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(baseURL string) *Client {
	return NewClient(
		config.LLMConfig{
			BaseURL:       baseURL,
			Key:           "test-key",
			ModelName:     "big",
			FastModelName: "small",
			Mode:          "default",
			DefaultModes:  map[string]string{"decide": "fast"},
		},
		config.AIConfig{MaxConcurrentRequests: 2, MaxParseRetries: 2},
		nil,
	)
}

func TestCallJSONParseRetry(t *testing.T) {
	srv, calls := newMockLLM(t, []string{"garbage", "still garbage", `{"x": 1}`})
	c := newTestClient(srv.URL)

	got, err := c.CallJSON(context.Background(), "prompt", ModeNormal, 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": float64(1)}, got)
	assert.EqualValues(t, 3, calls.Load(), "two parse retries after the first failure")
}

func TestCallJSONExhaustsRetries(t *testing.T) {
	srv, calls := newMockLLM(t, []string{"bad", "bad", "bad"})
	c := newTestClient(srv.URL)

	_, err := c.CallJSON(context.Background(), "prompt", ModeNormal, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMFailed)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.EqualValues(t, 2, calls.Load())
}

func TestTransportErrorCategories(t *testing.T) {
	tests := []struct {
		status   int
		category string
	}{
		{http.StatusUnauthorized, CategoryInvalidKey},
		{http.StatusForbidden, CategoryAccessDenied},
		{http.StatusNotFound, CategoryNotFound},
		{http.StatusInternalServerError, CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)
			_, err := c.CallJSON(context.Background(), "p", ModeNormal, 0)
			var tErr *TransportError
			require.ErrorAs(t, err, &tErr)
			assert.Equal(t, tt.category, tErr.Category)
		})
	}
}

func TestTransportErrorUnreachable(t *testing.T) {
	// A closed port: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(url)
	_, err := c.CallJSON(context.Background(), "p", ModeNormal, 0)
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, CategoryUnreachable, tErr.Category)
}

func TestResolveMode(t *testing.T) {
	c := newTestClient("http://example.com")

	assert.Equal(t, ModeFast, c.ResolveMode("", ModeFast))
	assert.Equal(t, ModeNormal, c.ResolveMode("", ModeNormal))
	assert.Equal(t, ModeFast, c.ResolveMode("decide", ModeDefault), "task table")
	assert.Equal(t, ModeNormal, c.ResolveMode("unknown_task", ModeDefault))

	forced := NewClient(
		config.LLMConfig{Mode: "fast", DefaultModes: map[string]string{"decide": "normal"}},
		config.AIConfig{MaxConcurrentRequests: 1},
		nil,
	)
	assert.Equal(t, ModeFast, forced.ResolveMode("decide", ModeNormal), "global override wins")
}

func TestModelPerMode(t *testing.T) {
	c := newTestClient("http://example.com")
	assert.Equal(t, "big", c.modelFor(ModeNormal))
	assert.Equal(t, "small", c.modelFor(ModeFast))

	noFast := NewClient(config.LLMConfig{ModelName: "only"}, config.AIConfig{MaxConcurrentRequests: 1}, nil)
	assert.Equal(t, "only", noFast.modelFor(ModeFast))
}

func TestDispatchPolling(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"ok": true}`}},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	call := c.Dispatch(context.Background(), "p", ModeNormal, 0)
	assert.False(t, call.Done())

	close(release)
	require.Eventually(t, call.Done, 2*time.Second, 10*time.Millisecond)

	got, err := call.Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, got)
}

func TestDispatchCancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	call := c.Dispatch(context.Background(), "p", ModeNormal, 0)
	call.Cancel()
	call.Cancel() // idempotent

	require.Eventually(t, call.Done, 2*time.Second, 10*time.Millisecond)
	_, err := call.Result()
	assert.Error(t, err)
}

func TestRenderTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "decide.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(
		"World:\n{{.world_info}}\nGoal: {{.goal}}\n",
	), 0o644))

	out, err := RenderTemplate(path, map[string]any{
		"world_info": map[string]any{"year": 12},
		"goal":       "ascend",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "\"year\": 12", "known keys pretty-printed with real newlines")
	assert.Contains(t, out, "Goal: ascend")
	assert.NotContains(t, out, `\n`)
}

func TestCallWithTaskName(t *testing.T) {
	srv, _ := newMockLLM(t, []string{`{"plan": "hunt"}`})
	c := newTestClient(srv.URL)

	dir := t.TempDir()
	path := filepath.Join(dir, "t.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("decide for {{.name}}"), 0o644))

	got, err := c.CallWithTaskName(context.Background(), "decide", path, map[string]any{"name": "Li"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "hunt", got["plan"])
}

func TestCallLoggerCleanup(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "llm-2020-01-01.log")
	recent := filepath.Join(dir, "llm-"+time.Now().Format(time.DateOnly)+".log")
	other := filepath.Join(dir, "keep.txt")
	for _, p := range []string{old, recent, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	logger, err := NewCallLogger(dir)
	require.NoError(t, err)

	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)
	assert.FileExists(t, other)

	logger.Record("m", "prompt body", "response body", time.Second, nil)
	data, err := os.ReadFile(recent)
	require.NoError(t, err)
	assert.Contains(t, string(data), "model=m")
	assert.Contains(t, string(data), "prompt body")
}

package llm

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// CallLogRetention is how long rolling call logs are kept.
const CallLogRetention = 7 * 24 * time.Hour

const callLogPrefix = "llm-"

// CallLogger appends every LLM exchange to a rolling daily file so prompt
// and response bodies survive for debugging without bloating slog output.
type CallLogger struct {
	dir string
	mu  sync.Mutex
}

// NewCallLogger creates the log directory and deletes logs older than the
// retention window.
func NewCallLogger(dir string) (*CallLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("llm: creating log dir: %w", err)
	}
	l := &CallLogger{dir: dir}
	l.cleanup()
	return l, nil
}

// Record appends one exchange to today's log file. Logging failures are
// reported via slog and otherwise swallowed; a broken log file must not
// fail a simulation tick.
func (l *CallLogger) Record(model, prompt, response string, dur time.Duration, callErr error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	path := filepath.Join(l.dir, callLogPrefix+now.Format(time.DateOnly)+".log")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("Failed to open LLM call log", "path", path, "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	status := "ok"
	if callErr != nil {
		status = callErr.Error()
	}
	fmt.Fprintf(f, "=== %s model=%s prompt_len=%d response_len=%d duration=%s status=%s\n",
		now.Format(time.RFC3339), model, len(prompt), len(response), dur.Round(time.Millisecond), status)
	fmt.Fprintf(f, "--- prompt\n%s\n--- response\n%s\n\n", prompt, response)
}

// cleanup removes call logs older than the retention window, keyed on the
// date embedded in the file name.
func (l *CallLogger) cleanup() {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		slog.Warn("Failed to scan LLM log dir", "dir", l.dir, "error", err)
		return
	}

	cutoff := time.Now().Add(-CallLogRetention)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, callLogPrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, callLogPrefix), ".log")
		day, err := time.Parse(time.DateOnly, dateStr)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(filepath.Join(l.dir, name)); err != nil {
				slog.Warn("Failed to delete old LLM log", "file", name, "error", err)
			}
		}
	}
}

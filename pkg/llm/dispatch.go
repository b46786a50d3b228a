package llm

import "context"

// Call is the handle an action stores while its LLM request is in flight.
// The owning action polls Done from step; the goroutine behind the call
// never touches world state.
type Call struct {
	done   chan struct{}
	result map[string]any
	err    error
	cancel context.CancelFunc
}

// Done reports whether the call finished (successfully or not) without
// blocking.
func (c *Call) Done() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Result returns the parsed object or error. Only meaningful after Done
// reports true.
func (c *Call) Result() (map[string]any, error) {
	select {
	case <-c.done:
		return c.result, c.err
	default:
		return nil, context.Canceled
	}
}

// Cancel aborts the in-flight request. Safe to call multiple times; a
// result arriving after Cancel is discarded by the caller.
func (c *Call) Cancel() { c.cancel() }

// Wait blocks until the call finishes or ctx ends. Synchronous callers
// (world generation, gatherings) use this instead of polling.
func (c *Call) Wait(ctx context.Context) (map[string]any, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispatch starts an asynchronous CallJSON and returns immediately with a
// pollable handle. The concurrency permit is acquired inside the goroutine
// so dispatching never blocks the tick loop.
func (c *Client) Dispatch(ctx context.Context, prompt string, mode Mode, maxRetries int) *Call {
	cctx, cancel := context.WithCancel(ctx)
	call := &Call{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(call.done)
		defer cancel()
		call.result, call.err = c.CallJSON(cctx, prompt, mode, maxRetries)
	}()
	return call
}

// DispatchTask renders a template for the named task and dispatches it
// asynchronously. Render failures surface through the handle.
func (c *Client) DispatchTask(ctx context.Context, task, templatePath string, info map[string]any, maxRetries int) *Call {
	mode := c.ResolveMode(task, ModeDefault)

	prompt, err := RenderTemplate(templatePath, info)
	if err != nil {
		call := &Call{done: make(chan struct{}), cancel: func() {}}
		call.err = err
		close(call.done)
		return call
	}
	return c.Dispatch(ctx, prompt, mode, maxRetries)
}

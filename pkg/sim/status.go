// Package sim is the agent action and scheduling engine: the action
// contract and registry, the per-avatar plan queue and runtime, the mutual
// (two-party) action protocol, the tick-driven simulator, the gathering
// engine, and save/restore of in-flight state.
//
// Concurrency model: the whole package runs on the simulator's single
// goroutine. The only asynchrony is LLM calls, which actions hold as
// pollable handles across ticks; the goroutines behind those handles never
// touch simulation state.
package sim

import "github.com/cloudrecess/xiansim/pkg/eventlog"

// Status is an action's lifecycle state.
type Status string

// Action statuses. Running is the only non-terminal one.
const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusInterrupted Status = "interrupted"
)

// Terminal reports whether the status ends the action.
func (s Status) Terminal() bool { return s != StatusRunning }

// Result is what one Step invocation produced.
type Result struct {
	Status  Status
	Events  []eventlog.Event
	Payload map[string]any

	// SuggestedNext plans are appended to the avatar's queue after Finish.
	SuggestedNext []*Plan
}

// Running is the non-terminal result.
func Running() Result { return Result{Status: StatusRunning} }

// Completed builds a terminal success result carrying events.
func Completed(events ...eventlog.Event) Result {
	return Result{Status: StatusCompleted, Events: events}
}

// Failed builds a terminal failure result carrying events.
func Failed(events ...eventlog.Event) Result {
	return Result{Status: StatusFailed, Events: events}
}

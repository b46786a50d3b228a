package sim

import (
	"log/slog"

	"github.com/cloudrecess/xiansim/pkg/eventlog"
)

// Gathering is a world-driven group happening (sect teachings, auctions).
// Implementations decide when they trigger, who they may draft, and what
// actually happens to the drafted participants.
type Gathering interface {
	Name() string

	// ShouldStart rolls the gathering's trigger for this tick.
	ShouldStart(env *Env) bool

	// Candidates returns the avatars the gathering would like to draft;
	// the engine filters them down to the eligible ones.
	Candidates(env *Env) []*Avatar

	// MinParticipants is the smallest group worth running.
	MinParticipants() int

	// Execute runs the gathering over the drafted participants and returns
	// the events to log. It may issue synchronous LLM calls.
	Execute(env *Env, participants []*Avatar) []eventlog.Event
}

// CallTask renders the task's prompt template and issues the call
// synchronously. Gatherings use this; actions must use DispatchTask instead.
func (e *Env) CallTask(task string, info map[string]any) (map[string]any, error) {
	return e.DispatchTask(task, info).Wait(e.ctx)
}

// Eligible reports whether the avatar can be drafted into a gathering: idle,
// or running an action that tolerates interleaving.
func Eligible(a *Avatar) bool {
	if !a.Alive {
		return false
	}
	if a.current == nil {
		return true
	}
	return a.current.Action.Spec().AllowGathering
}

// RunGatherings rolls each gathering once for this tick and executes those
// that trigger with enough eligible participants.
func RunGatherings(env *Env, gatherings []Gathering) {
	for _, g := range gatherings {
		if !g.ShouldStart(env) {
			continue
		}
		var drafted []*Avatar
		for _, a := range g.Candidates(env) {
			if Eligible(a) {
				drafted = append(drafted, a)
			}
		}
		if len(drafted) < g.MinParticipants() {
			continue
		}
		slog.Info("gathering starting", "gathering", g.Name(), "participants", len(drafted))
		for _, ev := range g.Execute(env, drafted) {
			env.Emit(ev)
		}
	}
}

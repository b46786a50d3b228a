package sim

import (
	"log/slog"
	"path/filepath"

	"github.com/cloudrecess/xiansim/pkg/llm"
)

// InteractRange is the maximum Chebyshev distance for two-party actions.
const InteractRange = 3

// Feedback values a target may return from a mutual action.
const (
	FeedbackAccept   = "accept"
	FeedbackReject   = "reject"
	FeedbackTalk     = "talk"
	FeedbackEscape   = "escape"
	FeedbackAttack   = "attack"
	FeedbackMoveAway = "move_away"
)

// DispatchTask renders the task's prompt template for the current language
// and dispatches it asynchronously through the gateway.
func (e *Env) DispatchTask(task string, info map[string]any) *llm.Call {
	path := filepath.Join(e.Cfg.Paths.Templates, e.Lang, task+".tmpl")
	return e.LLM.DispatchTask(e.ctx, task, path, info, e.Cfg.AI.MaxParseRetries)
}

// MutualConfig parameterizes the shared two-party flow.
type MutualConfig struct {
	// Task names the prompt template asking the target for feedback.
	Task string

	// Feedbacks is the closed set of replies offered to the target. A reply
	// outside the set falls back to the first entry.
	Feedbacks []string

	// Settle applies the target's decision. It runs on the tick the reply
	// lands and returns the initiator's result.
	Settle func(env *Env, initiator, target *Avatar, feedback string, reply map[string]any) Result
}

// MutualAction is the embedded state of a two-party action: the month it
// began and the in-flight feedback call. Actions embed it and call
// CanStartMutual / StepMutual from their hooks.
type MutualAction struct {
	StartMonth int `json:"start_month"`

	call *llm.Call
}

// CancelPending implements PendingCanceler.
func (m *MutualAction) CancelPending() {
	if m.call != nil {
		m.call.Cancel()
		m.call = nil
	}
}

// SaveData implements Action. In-flight calls are not saved; a restored
// action re-dispatches on its next step.
func (m *MutualAction) SaveData() map[string]any {
	return map[string]any{"start_month": m.StartMonth}
}

// LoadSaveData implements Action.
func (m *MutualAction) LoadSaveData(data map[string]any) {
	m.StartMonth = Params(data).Int("start_month")
}

// Target resolves the target_id param against the roster.
func (m *MutualAction) Target(env *Env, p Params) (*Avatar, bool) {
	return env.Avatars.Get(p.Str("target_id"))
}

// CanStartMutual checks the shared two-party preconditions: the target
// exists, lives, is not the initiator, and is within interaction range.
func CanStartMutual(env *Env, a *Avatar, p Params) (bool, string) {
	target, ok := env.Avatars.Get(p.Str("target_id"))
	if !ok {
		return false, "target does not exist"
	}
	if !target.Alive {
		return false, "target is dead"
	}
	if target.ID == a.ID {
		return false, "cannot target oneself"
	}
	if Distance(a, target) > InteractRange {
		return false, "target is too far away"
	}
	return true, ""
}

// StepMutual drives the shared flow: dispatch the feedback request on the
// first step, poll until the reply lands, then settle. The target's thinking
// is updated from the reply before Settle runs.
func (m *MutualAction) StepMutual(env *Env, a *Avatar, p Params, cfg MutualConfig) Result {
	target, ok := m.Target(env, p)
	if !ok || !target.Alive {
		return Failed()
	}

	if m.call == nil {
		// The target weighs the approach against what the initiator is
		// already committed to, so the plan queue rides along.
		initiator := a.Info()
		initiator["plans"] = a.PlanInfos()
		m.call = env.DispatchTask(cfg.Task, map[string]any{
			"expanded_info":    target.ExpandedInfo(),
			"avatar_infos":     []map[string]any{initiator},
			"world_info":       env.WorldInfo(),
			"feedback_options": cfg.Feedbacks,
			"language":         env.Lang,
		})
		return Running()
	}
	if !m.call.Done() {
		return Running()
	}

	reply, err := m.call.Result()
	m.call = nil
	if err != nil {
		slog.Warn("mutual action feedback call failed",
			"initiator", a.ID, "target", target.ID, "task", cfg.Task, "error", err)
		return Failed()
	}

	feedback := normalizeFeedback(reply, cfg.Feedbacks)
	if thinking, ok := reply["thinking"].(string); ok && thinking != "" {
		target.Thinking = thinking
	}
	return cfg.Settle(env, a, target, feedback, reply)
}

func normalizeFeedback(reply map[string]any, allowed []string) string {
	got, _ := reply["feedback"].(string)
	for _, f := range allowed {
		if got == f {
			return got
		}
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return got
}

package actions

import (
	"log/slog"

	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/llm"
	"github.com/cloudrecess/xiansim/pkg/sim"
)

// decideSightRange bounds which other avatars appear in the decision prompt.
const decideSightRange = 10

// Decide asks the model for the avatar's next chain of plans. The reply
// replaces the queue; the avatar then proceeds with whatever it chose.
type Decide struct {
	sim.NoState

	call *llm.Call
}

func (d *Decide) Name() string { return NameDecide }

func (d *Decide) Spec() sim.Spec { return sim.Spec{} }

// CancelPending implements sim.PendingCanceler.
func (d *Decide) CancelPending() {
	if d.call != nil {
		d.call.Cancel()
		d.call = nil
	}
}

func (d *Decide) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	return true, ""
}

func (d *Decide) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	return nil
}

func (d *Decide) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	if d.call == nil {
		infos := make([]map[string]any, 0)
		for _, other := range env.AvatarsNear(a, decideSightRange) {
			infos = append(infos, other.Info())
		}
		d.call = env.DispatchTask("decide", map[string]any{
			"expanded_info":        a.ExpandedInfo(),
			"avatar_infos":         infos,
			"world_info":           env.WorldInfo(),
			"general_action_infos": env.GeneralActionInfos(),
			"recent_events":        recentContents(a),
			"language":             env.Lang,
		})
		return sim.Running()
	}
	if !d.call.Done() {
		return sim.Running()
	}

	reply, err := d.call.Result()
	d.call = nil
	if err != nil {
		slog.Warn("decision call failed", "avatar", a.ID, "error", err)
		return sim.Failed()
	}

	chain := parseDecidedPlans(env, reply)
	thinking, _ := reply["thinking"].(string)
	shortGoal, _ := reply["short_goal"].(string)
	sim.LoadDecideResult(a, chain, thinking, shortGoal, false)
	return sim.Completed()
}

func (d *Decide) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	return nil
}

// parseDecidedPlans extracts the plan chain from a decision reply, skipping
// malformed entries and unknown action names.
func parseDecidedPlans(env *sim.Env, reply map[string]any) []sim.DecidedPlan {
	rawPlans, _ := reply["plans"].([]any)
	var chain []sim.DecidedPlan
	for _, raw := range rawPlans {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := obj["action"].(string)
		if _, known := env.Registry.New(name); !known {
			slog.Debug("decision picked unknown action", "action", name)
			continue
		}
		params, _ := obj["params"].(map[string]any)
		chain = append(chain, sim.DecidedPlan{ActionName: name, Params: params})
	}
	return chain
}

func recentContents(a *sim.Avatar) []string {
	events := a.RecentEvents()
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Content)
	}
	return out
}

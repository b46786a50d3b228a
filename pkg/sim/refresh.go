package sim

import (
	"log/slog"
)

// Nickname refresh tunables.
const (
	// NicknameRenewYears is how long an existing nickname blocks a new one.
	NicknameRenewYears = 10

	// Objective regeneration window, in years since the current objective
	// was set.
	objectiveMinAgeYears   = 5
	objectiveForceAgeYears = 10
)

// NicknameEligible reports whether the avatar may be offered a (new)
// nickname this tick: either no nickname yet or the current one is at least
// NicknameRenewYears old, and the avatar's event history clears both the
// major and minor thresholds.
func NicknameEligible(env *Env, a *Avatar) bool {
	year := env.World.Clock.Year()
	if a.Nick != nil && year-a.Nick.CreatedYear < NicknameRenewYears {
		return false
	}
	majors, err := env.Events.CountByAvatar(a.ID, true)
	if err != nil {
		slog.Error("failed to count major events", "avatar", a.ID, "error", err)
		return false
	}
	if majors < env.Cfg.Game.NicknameMajorThreshold {
		return false
	}
	minors, err := env.Events.CountByAvatar(a.ID, false)
	if err != nil {
		slog.Error("failed to count minor events", "avatar", a.ID, "error", err)
		return false
	}
	return minors >= env.Cfg.Game.NicknameMinorThreshold
}

// ObjectiveRegenProbability maps the age in years of an LLM-set objective to
// the chance of regenerating it this tick. Below the minimum age the chance
// is zero; at the force age it is certain; in between it ramps linearly from
// 0.1 to 1.0.
func ObjectiveRegenProbability(ageYears int) float64 {
	if ageYears < objectiveMinAgeYears {
		return 0
	}
	if ageYears >= objectiveForceAgeYears {
		return 1
	}
	span := float64(objectiveForceAgeYears - objectiveMinAgeYears)
	return float64(ageYears-objectiveMinAgeYears)/span*0.9 + 0.1
}

// objectiveRefreshDue decides whether to regenerate the avatar's long-term
// objective. User-set objectives are never touched.
func objectiveRefreshDue(env *Env, a *Avatar) bool {
	if a.LongGoal == nil {
		return true
	}
	if a.LongGoal.Origin == OriginUser {
		return false
	}
	age := env.World.Clock.Year() - a.LongGoal.CreatedYear
	p := ObjectiveRegenProbability(age)
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return env.RNG.Float64() < p
}

// SetUserObjective installs a player-authored long-term objective. The
// short-term goal and queued plans are cleared so the next decision starts
// from the new objective; the running action is left alone.
func (e *Env) SetUserObjective(a *Avatar, text string) {
	a.LongGoal = &Objective{
		Text:        text,
		Origin:      OriginUser,
		CreatedYear: e.World.Clock.Year(),
	}
	a.ShortGoal = ""
	a.ClearPlans()
}

// refreshIdentity drives the per-avatar nickname and objective refresh
// state machines. Requests are dispatched asynchronously; replies are
// harvested on later ticks.
func refreshIdentity(env *Env, a *Avatar) {
	harvestNickname(env, a)
	harvestObjective(env, a)

	if a.pendingNickname == nil && NicknameEligible(env, a) {
		a.pendingNickname = env.DispatchTask("nickname", map[string]any{
			"expanded_info": a.ExpandedInfo(),
			"world_info":    env.WorldInfo(),
			"recent_events": recentContents(a),
			"language":      env.Lang,
		})
	}
	if a.pendingObjective == nil && objectiveRefreshDue(env, a) {
		a.pendingObjective = env.DispatchTask("objective", map[string]any{
			"expanded_info": a.ExpandedInfo(),
			"world_info":    env.WorldInfo(),
			"recent_events": recentContents(a),
			"language":      env.Lang,
		})
	}
}

func harvestNickname(env *Env, a *Avatar) {
	call := a.pendingNickname
	if call == nil || !call.Done() {
		return
	}
	a.pendingNickname = nil
	reply, err := call.Result()
	if err != nil {
		slog.Warn("nickname generation failed", "avatar", a.ID, "error", err)
		return
	}
	text, _ := reply["nickname"].(string)
	if text == "" {
		return
	}
	reason, _ := reply["reason"].(string)
	a.Nick = &Nickname{Text: text, Reason: reason, CreatedYear: env.World.Clock.Year()}
	env.EmitText(a.Name+" became known as "+text, true, false, a.ID)
}

func harvestObjective(env *Env, a *Avatar) {
	call := a.pendingObjective
	if call == nil || !call.Done() {
		return
	}
	a.pendingObjective = nil
	reply, err := call.Result()
	if err != nil {
		slog.Warn("objective generation failed", "avatar", a.ID, "error", err)
		return
	}
	text, _ := reply["objective"].(string)
	if text == "" {
		return
	}
	// A user objective set while the call was in flight wins.
	if a.LongGoal != nil && a.LongGoal.Origin == OriginUser {
		return
	}
	a.LongGoal = &Objective{Text: text, Origin: OriginLLM, CreatedYear: env.World.Clock.Year()}
}

func recentContents(a *Avatar) []string {
	events := a.RecentEvents()
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Content)
	}
	return out
}

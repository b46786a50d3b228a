package sim

import (
	"fmt"
	"log/slog"
	"sort"
)

// PromoteNextPlan pops plans off the avatar's queue until one starts or the
// queue empties. Expired plans are dropped silently. A plan whose cooldown or
// CanStart check fails is retried on a later tick while attempts remain,
// then dropped with a failure event.
func PromoteNextPlan(env *Env, a *Avatar) {
	if a.current != nil {
		return
	}
	month := env.Month()
	for len(a.plans) > 0 {
		p := popBestPlan(a)
		if p.Expired(month) {
			continue
		}

		action, ok := env.Registry.New(p.ActionName)
		if !ok {
			slog.Warn("dropping plan for unknown action",
				"avatar", a.ID, "action", p.ActionName)
			continue
		}

		okStart, reason := canStartWithCooldown(env, a, action, p.Params)
		if !okStart {
			p.Attempted++
			if p.Attempted <= p.MaxRetries {
				a.plans = append(a.plans, p)
				return
			}
			env.EmitText(
				fmt.Sprintf("%s gave up on %s: %s", a.Name, p.ActionName, reason),
				false, false, a.ID)
			continue
		}

		a.current = &Instance{Action: action, Params: p.Params, Status: StatusRunning}
		if ev := action.Start(env, a, p.Params); ev != nil {
			env.Emit(*ev)
		}
		return
	}
}

// popBestPlan removes and returns the highest-priority plan; queue order
// breaks ties so equal-priority plans run first-in first-out.
func popBestPlan(a *Avatar) *Plan {
	best := 0
	for i, p := range a.plans {
		if p.Priority > a.plans[best].Priority {
			best = i
		}
	}
	p := a.plans[best]
	a.plans = append(a.plans[:best], a.plans[best+1:]...)
	return p
}

func canStartWithCooldown(env *Env, a *Avatar, action Action, params Params) (bool, string) {
	spec := action.Spec()
	if spec.CooldownMonths > 0 {
		if last, ran := a.cooldowns[action.Name()]; ran {
			if env.Month()-last < spec.CooldownMonths {
				return false, "still recovering from the last attempt"
			}
		}
	}
	return action.CanStart(env, a, params)
}

// Advance runs one tick for the avatar: promote if idle, step the current
// action, and on a terminal status run Finish and queue any suggested
// follow-ups. If the action preempts its owner mid-step (escape handing
// control to a movement action) the replaced instance is abandoned without
// Finish.
func Advance(env *Env, a *Avatar) {
	if !a.Alive {
		return
	}
	if a.current == nil {
		PromoteNextPlan(env, a)
	}
	inst := a.current
	if inst == nil {
		return
	}

	res := inst.Action.Step(env, a, inst.Params)
	for _, ev := range res.Events {
		env.Emit(ev)
	}

	// Step may have replaced or cleared the current instance via ForceAction.
	if a.current != inst {
		return
	}
	if !res.Status.Terminal() {
		return
	}

	inst.Status = res.Status
	for _, ev := range inst.Action.Finish(env, a, inst.Params) {
		env.Emit(ev)
	}
	if inst.Action.Spec().CooldownMonths > 0 {
		a.cooldowns[inst.Action.Name()] = env.Month()
	}
	a.current = nil
	for _, next := range res.SuggestedNext {
		a.plans = append(a.plans, next)
	}
}

// Preempt cancels the avatar's current action and clears the queue. Finish
// is never called for the cancelled action; an in-flight LLM call is
// cancelled through PendingCanceler. Idempotent.
func Preempt(a *Avatar) {
	if cur := a.current; cur != nil {
		if pc, ok := cur.Action.(PendingCanceler); ok {
			pc.CancelPending()
		}
		cur.Status = StatusCancelled
		a.current = nil
	}
	a.plans = nil
}

// ClearPlans drops queued plans without touching the running action.
func (a *Avatar) ClearPlans() { a.plans = nil }

// DecidedPlan is one entry of an AI decision result.
type DecidedPlan struct {
	ActionName string
	Params     Params
}

// LoadDecideResult installs a decision outcome: replace the queue with the
// decided chain and record the updated thinking and short-term goal. When
// prepend is set the existing queue survives behind the new plans.
func LoadDecideResult(a *Avatar, chain []DecidedPlan, thinking, shortGoal string, prepend bool) {
	plans := make([]*Plan, 0, len(chain))
	for _, d := range chain {
		plans = append(plans, NewPlan(d.ActionName, d.Params))
	}
	if prepend {
		a.plans = append(plans, a.plans...)
	} else {
		a.plans = plans
	}
	if thinking != "" {
		a.Thinking = thinking
	}
	if shortGoal != "" {
		a.ShortGoal = shortGoal
	}
}

// SortPlansByPriority orders the queue highest priority first, stable.
func (a *Avatar) SortPlansByPriority() {
	sort.SliceStable(a.plans, func(i, j int) bool {
		return a.plans[i].Priority > a.plans[j].Priority
	})
}

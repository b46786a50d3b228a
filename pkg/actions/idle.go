package actions

import (
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/sim"
)

// Idle passes time. It welcomes gatherings and world events, which makes it
// the default filler between decisions.
type Idle struct {
	StartMonth int `json:"start_month"`
	Duration   int `json:"duration"`
}

func (i *Idle) Name() string { return NameIdle }

func (i *Idle) Spec() sim.Spec {
	return sim.Spec{Actual: true, AllowGathering: true, AllowWorldEvents: true}
}

func (i *Idle) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	return true, ""
}

func (i *Idle) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	i.StartMonth = env.Month()
	i.Duration = p.Int("duration")
	if i.Duration < 1 {
		i.Duration = 1
	}
	i.Duration = sim.EffectiveDuration(i.Duration, env.EffectNumber(a, "duration_reduction"))
	return nil
}

func (i *Idle) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	if i.Duration < 1 {
		i.Duration = 1
	}
	if sim.TimedDone(env.Month(), i.StartMonth, i.Duration) {
		return sim.Completed()
	}
	return sim.Running()
}

func (i *Idle) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	return nil
}

func (i *Idle) SaveData() map[string]any {
	return map[string]any{"start_month": i.StartMonth, "duration": i.Duration}
}

func (i *Idle) LoadSaveData(data map[string]any) {
	p := sim.Params(data)
	i.StartMonth = p.Int("start_month")
	i.Duration = p.Int("duration")
}

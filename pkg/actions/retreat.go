package actions

import (
	"fmt"

	"github.com/cloudrecess/xiansim/pkg/effects"
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/sim"
)

// Retreat duration bounds, in months.
const (
	retreatMinMonths = 12
	retreatMaxMonths = 36
)

// Retreat success probability bounds.
const (
	retreatBaseSuccess  = 0.5
	retreatRealmPenalty = 0.1
	retreatMinSuccess   = 0.1
	retreatMaxSuccess   = 1.0
)

// RetreatSuccessRate is the chance a closed-door retreat ends in a
// breakthrough: harder at higher realms, shifted by the avatar's
// extra_retreat_success_rate modifier, clamped to [0.1, 1.0].
func RetreatSuccessRate(realm sim.Realm, extra float64) float64 {
	rate := retreatBaseSuccess - float64(realm)*retreatRealmPenalty + extra
	if rate < retreatMinSuccess {
		rate = retreatMinSuccess
	}
	if rate > retreatMaxSuccess {
		rate = retreatMaxSuccess
	}
	return rate
}

// Retreat is a closed-door breakthrough attempt of random length. Success
// pushes the avatar over its next level boundary; failure leaves a lingering
// qi deviation.
type Retreat struct {
	StartMonth int `json:"start_month"`
	Duration   int `json:"duration"`
}

func (r *Retreat) Name() string { return NameRetreat }

func (r *Retreat) Spec() sim.Spec {
	// Sealed away: no gatherings, no chance encounters, and a long rest
	// before the next attempt.
	return sim.Spec{Actual: true, IsMajor: true, CooldownMonths: 24}
}

func (r *Retreat) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	if a.Realm >= sim.RealmAscension && a.Level >= sim.MaxRealmLevel {
		return false, "nothing left to break through"
	}
	return true, ""
}

func (r *Retreat) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	r.StartMonth = env.Month()
	r.Duration = retreatMinMonths + env.RNG.IntN(retreatMaxMonths-retreatMinMonths+1)
	r.Duration = sim.EffectiveDuration(r.Duration, env.EffectNumber(a, "duration_reduction"))
	ev := eventlog.New(env.Month(),
		fmt.Sprintf("%s entered closed-door retreat", a.Name),
		[]string{a.ID}, true, false)
	return &ev
}

func (r *Retreat) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	if sim.TimedDone(env.Month(), r.StartMonth, r.Duration) {
		return sim.Completed()
	}
	return sim.Running()
}

func (r *Retreat) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	extra := effects.Number(env.Effects(a), "extra_retreat_success_rate")
	rate := RetreatSuccessRate(a.Realm, extra)

	if env.RNG.Float64() < rate {
		need := sim.NextLevelExp(a.Realm, a.Level) - a.Exp
		broke := a.GainExp(need)
		verb := "advanced a level"
		if broke {
			verb = fmt.Sprintf("broke through to the %s realm", a.Realm)
		}
		ev := eventlog.New(env.Month(),
			fmt.Sprintf("%s emerged from retreat and %s", a.Name, verb),
			[]string{a.ID}, true, true)
		return []eventlog.Event{ev}
	}

	a.AddTempEffect(&sim.TemporaryEffect{
		Source:         "qi_deviation",
		Effect:         map[string]any{"cultivate_speed": -0.3},
		StartMonth:     env.Month(),
		DurationMonths: 12,
	})
	ev := eventlog.New(env.Month(),
		fmt.Sprintf("%s failed the retreat; qi deviation set in", a.Name),
		[]string{a.ID}, true, false)
	return []eventlog.Event{ev}
}

func (r *Retreat) SaveData() map[string]any {
	return map[string]any{"start_month": r.StartMonth, "duration": r.Duration}
}

func (r *Retreat) LoadSaveData(data map[string]any) {
	p := sim.Params(data)
	r.StartMonth = p.Int("start_month")
	r.Duration = p.Int("duration")
}

package actions

import (
	"fmt"

	"github.com/cloudrecess/xiansim/pkg/effects"
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/sim"
)

// battlePower scores a combatant: cultivation base plus equipment and a
// fortune roll so weaker fighters still win sometimes.
func battlePower(env *sim.Env, a *sim.Avatar) int {
	base := int(a.Realm)*10*sim.MaxRealmLevel + a.Level*10
	base += int(effects.Number(env.Effects(a), "attack"))
	return base + env.RNG.IntN(30)
}

// deathGap is the power margin beyond which a lost battle turns fatal.
const deathGap = 60

// resolveBattle fights the two out immediately and returns the initiator's
// result. The loser is injured, or killed outright when thoroughly outmatched.
func resolveBattle(env *sim.Env, attacker, defender *sim.Avatar) sim.Result {
	ap := battlePower(env, attacker)
	dp := battlePower(env, defender)
	winner, loser := attacker, defender
	gap := ap - dp
	if dp >= ap {
		winner, loser = defender, attacker
		gap = dp - ap
	}

	env.AdjustRelation(attacker, defender, -5)
	winner.GainExp(sim.NextLevelExp(winner.Realm, winner.Level) / 5)

	var events []eventlog.Event
	if gap > deathGap {
		loser.Alive = false
		env.World.ReleaseHost(loser.ID)
		sim.Preempt(loser)
		events = append(events, eventlog.New(env.Month(),
			fmt.Sprintf("%s struck down %s in battle", winner.Name, loser.Name),
			[]string{winner.ID, loser.ID}, true, true))
	} else {
		loser.AddTempEffect(&sim.TemporaryEffect{
			Source:         "battle_wound",
			Effect:         map[string]any{"attack": -5, "cultivate_speed": -0.2},
			StartMonth:     env.Month(),
			DurationMonths: 6,
		})
		events = append(events, eventlog.New(env.Month(),
			fmt.Sprintf("%s defeated %s; the loser fled with wounds", winner.Name, loser.Name),
			[]string{winner.ID, loser.ID}, true, true))
	}

	if winner == attacker {
		return sim.Result{Status: sim.StatusCompleted, Events: events}
	}
	return sim.Result{Status: sim.StatusFailed, Events: events}
}

// Attack challenges another avatar. The target decides whether to stand and
// fight or try to escape; battle resolution favors power but never fully
// removes chance.
type Attack struct {
	sim.MutualAction
}

func (at *Attack) Name() string { return NameAttack }

func (at *Attack) Spec() sim.Spec {
	return sim.Spec{Actual: true, IsMajor: true}
}

func (at *Attack) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	return sim.CanStartMutual(env, a, p)
}

func (at *Attack) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	at.StartMonth = env.Month()
	target, _ := at.Target(env, p)
	ev := eventlog.New(env.Month(),
		fmt.Sprintf("%s moved to attack %s", a.Name, target.Name),
		[]string{a.ID, target.ID}, true, false)
	return &ev
}

func (at *Attack) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	return at.StepMutual(env, a, p, sim.MutualConfig{
		Task:      "attack_feedback",
		Feedbacks: []string{sim.FeedbackAttack, sim.FeedbackEscape},
		Settle: func(env *sim.Env, initiator, target *sim.Avatar, feedback string, reply map[string]any) sim.Result {
			if feedback == sim.FeedbackEscape {
				env.ForceAction(target, NameEscape, sim.Params{"target_id": initiator.ID})
				ev := eventlog.New(env.Month(),
					fmt.Sprintf("%s turned to flee from %s", target.Name, initiator.Name),
					[]string{initiator.ID, target.ID}, false, false)
				return sim.Completed(ev)
			}
			return resolveBattle(env, initiator, target)
		},
	})
}

func (at *Attack) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	return nil
}

// Escape rate bounds.
const (
	escapeBaseRate  = 0.5
	escapeRealmStep = 0.1
	escapeMinRate   = 0.1
	escapeMaxRate   = 0.9
)

// EscapeRate is the chance of shaking off a pursuer, shifted by the realm
// difference and the fleeing avatar's extra_escape_rate modifier.
func EscapeRate(runner, pursuer sim.Realm, extra float64) float64 {
	rate := escapeBaseRate + float64(int(runner)-int(pursuer))*escapeRealmStep + extra
	if rate < escapeMinRate {
		rate = escapeMinRate
	}
	if rate > escapeMaxRate {
		rate = escapeMaxRate
	}
	return rate
}

// Escape is the forced reaction to being attacked: one roll decides whether
// the avatar slips away or is cornered into fighting back. Either way it
// replaces itself with the follow-up action, so it never finishes normally.
type Escape struct {
	sim.NoState
}

func (e *Escape) Name() string { return NameEscape }

func (e *Escape) Spec() sim.Spec { return sim.Spec{} }

func (e *Escape) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	if _, ok := env.Avatars.Get(p.Str("target_id")); !ok {
		return false, "no pursuer"
	}
	return true, ""
}

func (e *Escape) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	return nil
}

func (e *Escape) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	pursuer, ok := env.Avatars.Get(p.Str("target_id"))
	if !ok || !pursuer.Alive {
		return sim.Completed()
	}

	extra := effects.Number(env.Effects(a), "extra_escape_rate")
	if env.RNG.Float64() < EscapeRate(a.Realm, pursuer.Realm, extra) {
		env.ForceAction(a, NameMoveAway, sim.Params{
			"target_id": pursuer.ID,
			"distance":  FleeDistance,
		})
		return sim.Completed(eventlog.New(env.Month(),
			fmt.Sprintf("%s slipped away from %s", a.Name, pursuer.Name),
			[]string{a.ID, pursuer.ID}, false, false))
	}

	env.ForceAction(a, NameAttack, sim.Params{"target_id": pursuer.ID})
	return sim.Completed(eventlog.New(env.Month(),
		fmt.Sprintf("%s was cornered by %s and turned to fight", a.Name, pursuer.Name),
		[]string{a.ID, pursuer.ID}, false, false))
}

func (e *Escape) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	return nil
}

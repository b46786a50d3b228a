package sim

import "fmt"

// fortunes and misfortunes are the random per-avatar world perturbations.
// Each entry applies a concrete mechanical change and yields the event text.
type worldEvent struct {
	major bool
	apply func(env *Env, a *Avatar) string
}

var fortunes = []worldEvent{
	{apply: func(env *Env, a *Avatar) string {
		amount := 10 + env.RNG.IntN(41)
		a.Currency += amount
		return fmt.Sprintf("%s stumbled upon a forgotten cache and gained %d spirit stones", a.Name, amount)
	}},
	{apply: func(env *Env, a *Avatar) string {
		gain := NextLevelExp(a.Realm, a.Level) / 10
		if gain < 1 {
			gain = 1
		}
		a.GainExp(gain)
		return fmt.Sprintf("%s had a flash of insight while observing the world", a.Name)
	}},
	{major: true, apply: func(env *Env, a *Avatar) string {
		a.AddTempEffect(&TemporaryEffect{
			Source:         "blessing",
			Effect:         map[string]any{"cultivate_speed": 0.2},
			StartMonth:     env.Month(),
			DurationMonths: 12,
		})
		return fmt.Sprintf("%s was touched by a stray blessing of the heavens", a.Name)
	}},
}

var misfortunes = []worldEvent{
	{apply: func(env *Env, a *Avatar) string {
		loss := 5 + env.RNG.IntN(21)
		if loss > a.Currency {
			loss = a.Currency
		}
		a.Currency -= loss
		return fmt.Sprintf("%s was robbed on the road and lost %d spirit stones", a.Name, loss)
	}},
	{apply: func(env *Env, a *Avatar) string {
		a.AddTempEffect(&TemporaryEffect{
			Source:         "injury",
			Effect:         map[string]any{"cultivate_speed": -0.2},
			StartMonth:     env.Month(),
			DurationMonths: 6,
		})
		return fmt.Sprintf("%s suffered a lingering injury in a freak accident", a.Name)
	}},
	{major: true, apply: func(env *Env, a *Avatar) string {
		a.LifespanMonths -= 12
		return fmt.Sprintf("%s drew the heavens' ire; their lifespan was shortened", a.Name)
	}},
}

// worldEventsEligible mirrors gathering eligibility but keys off the
// action's AllowWorldEvents flag.
func worldEventsEligible(a *Avatar) bool {
	if !a.Alive {
		return false
	}
	if a.current == nil {
		return true
	}
	return a.current.Action.Spec().AllowWorldEvents
}

// rollWorldEvents gives each eligible avatar one fortune and one misfortune
// roll for the tick.
func rollWorldEvents(env *Env) {
	for _, a := range env.Avatars.Living() {
		if !worldEventsEligible(a) {
			continue
		}
		if env.RNG.Float64() < env.Cfg.Game.FortuneProb {
			applyWorldEvent(env, a, fortunes)
		}
		if env.RNG.Float64() < env.Cfg.Game.MisfortuneProb {
			applyWorldEvent(env, a, misfortunes)
		}
	}
}

func applyWorldEvent(env *Env, a *Avatar, pool []worldEvent) {
	ev := pool[env.RNG.IntN(len(pool))]
	content := ev.apply(env, a)
	env.EmitText(content, ev.major, false, a.ID)
}

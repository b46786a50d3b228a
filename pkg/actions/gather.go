package actions

import (
	"fmt"

	"github.com/cloudrecess/xiansim/pkg/effects"
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/sim"
	"github.com/cloudrecess/xiansim/pkg/world"
)

// DefaultHuntMonths is the fallback duration of the gathering actions.
const DefaultHuntMonths = 6

// gatherKind describes one of the three resource actions; they share the
// whole flow and differ only in the region column they draw from.
type gatherKind struct {
	name    string
	verb    string
	sources func(r *world.Region) []int
}

// Gather is a timed stay-in-place action that accumulates materials from
// the local region each month.
type Gather struct {
	kind gatherKind

	StartMonth int         `json:"start_month"`
	Duration   int         `json:"duration"`
	Loot       map[int]int `json:"loot"`
}

func newHunt() *Gather {
	return &Gather{kind: gatherKind{
		name:    NameHunt,
		verb:    "hunting",
		sources: func(r *world.Region) []int { return r.Huntables },
	}}
}

func newHarvest() *Gather {
	return &Gather{kind: gatherKind{
		name:    NameHarvest,
		verb:    "harvesting",
		sources: func(r *world.Region) []int { return r.Harvestables },
	}}
}

func newMine() *Gather {
	return &Gather{kind: gatherKind{
		name:    NameMine,
		verb:    "mining",
		sources: func(r *world.Region) []int { return r.Minables },
	}}
}

func (g *Gather) Name() string { return g.kind.name }

func (g *Gather) Spec() sim.Spec {
	return sim.Spec{Actual: true, AllowGathering: true, AllowWorldEvents: true}
}

func (g *Gather) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	r := env.World.RegionAt(a.X, a.Y)
	if r == nil || r.Kind != world.RegionNormal {
		return false, "nothing to gather here"
	}
	if len(g.kind.sources(r)) == 0 {
		return false, "this land yields nothing of the sort"
	}
	return true, ""
}

func (g *Gather) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	g.StartMonth = env.Month()
	g.Duration = p.Int("duration")
	if g.Duration < 1 {
		g.Duration = DefaultHuntMonths
	}
	g.Duration = sim.EffectiveDuration(g.Duration, env.EffectNumber(a, "duration_reduction"))
	g.Loot = make(map[int]int)
	r := env.World.RegionAt(a.X, a.Y)
	ev := eventlog.New(env.Month(),
		fmt.Sprintf("%s began %s in %s", a.Name, g.kind.verb, r.Name),
		[]string{a.ID}, false, false)
	return &ev
}

func (g *Gather) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	r := env.World.RegionAt(a.X, a.Y)
	if r == nil {
		return sim.Failed()
	}
	sources := g.kind.sources(r)
	if len(sources) > 0 {
		yield := 1 + int(effects.Number(env.Effects(a), "gather_yield"))
		if yield < 1 {
			yield = 1
		}
		id := sources[env.RNG.IntN(len(sources))]
		if g.Loot == nil {
			g.Loot = make(map[int]int)
		}
		g.Loot[id] += yield
	}
	if sim.TimedDone(env.Month(), g.StartMonth, g.Duration) {
		return sim.Completed()
	}
	return sim.Running()
}

func (g *Gather) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	total := 0
	for id, n := range g.Loot {
		a.Materials[id] += n
		total += n
	}
	ev := eventlog.New(env.Month(),
		fmt.Sprintf("%s returned from %s with %d spoils", a.Name, g.kind.verb, total),
		[]string{a.ID}, false, false)
	return []eventlog.Event{ev}
}

func (g *Gather) SaveData() map[string]any {
	loot := make(map[string]any, len(g.Loot))
	for id, n := range g.Loot {
		loot[fmt.Sprint(id)] = n
	}
	return map[string]any{
		"start_month": g.StartMonth,
		"duration":    g.Duration,
		"loot":        loot,
	}
}

func (g *Gather) LoadSaveData(data map[string]any) {
	p := sim.Params(data)
	g.StartMonth = p.Int("start_month")
	g.Duration = p.Int("duration")
	g.Loot = make(map[int]int)
	if raw, ok := data["loot"].(map[string]any); ok {
		for key := range raw {
			var id int
			if _, err := fmt.Sscan(key, &id); err == nil {
				g.Loot[id] = sim.Params(raw).Int(key)
			}
		}
	}
}

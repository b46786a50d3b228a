package actions

import (
	"fmt"

	"github.com/cloudrecess/xiansim/pkg/effects"
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/sim"
	"github.com/cloudrecess/xiansim/pkg/world"
)

// DefaultCultivateMonths is the fallback cultivation session length.
const DefaultCultivateMonths = 12

// baseCultivateExp is the monthly experience from cultivating on bare ground.
const baseCultivateExp = 20

// Cultivate absorbs qi in place for a stretch of months. Sitting inside a
// cultivate region multiplies the gain by its density and claims the region
// as host for the duration.
type Cultivate struct {
	StartMonth int  `json:"start_month"`
	Duration   int  `json:"duration"`
	HostRegion int  `json:"host_region"`
	hosting    bool `json:"-"`
}

func (c *Cultivate) Name() string { return NameCultivate }

func (c *Cultivate) Spec() sim.Spec {
	return sim.Spec{Actual: true, AllowGathering: true, AllowWorldEvents: true}
}

func (c *Cultivate) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	r := env.World.RegionAt(a.X, a.Y)
	if r != nil && r.Kind == world.RegionCultivate && r.HostID != "" && r.HostID != a.ID {
		return false, "the region is already claimed by another cultivator"
	}
	return true, ""
}

func (c *Cultivate) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	c.StartMonth = env.Month()
	c.Duration = p.Int("duration")
	if c.Duration < 1 {
		c.Duration = DefaultCultivateMonths
	}
	c.Duration = sim.EffectiveDuration(c.Duration, env.EffectNumber(a, "duration_reduction"))

	where := "in the wilds"
	if r := env.World.RegionAt(a.X, a.Y); r != nil {
		if r.Kind == world.RegionCultivate && r.Claim(a.ID) {
			c.HostRegion = r.ID
			c.hosting = true
		}
		where = "in " + r.Name
	}
	ev := eventlog.New(env.Month(),
		fmt.Sprintf("%s sat down to cultivate %s", a.Name, where),
		[]string{a.ID}, false, false)
	return &ev
}

func (c *Cultivate) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	gain := float64(baseCultivateExp)
	if r := env.World.RegionAt(a.X, a.Y); r != nil && r.Kind == world.RegionCultivate {
		if r.Density > 0 {
			gain *= float64(r.Density)
		}
	}
	gain *= 1 + effects.Number(env.Effects(a), "cultivate_speed")
	if gain < 1 {
		gain = 1
	}

	var events []eventlog.Event
	if a.GainExp(int(gain)) {
		events = append(events, eventlog.New(env.Month(),
			fmt.Sprintf("%s broke through to the %s realm", a.Name, a.Realm),
			[]string{a.ID}, true, true))
	}
	if sim.TimedDone(env.Month(), c.StartMonth, c.Duration) {
		return sim.Result{Status: sim.StatusCompleted, Events: events}
	}
	return sim.Result{Status: sim.StatusRunning, Events: events}
}

func (c *Cultivate) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	c.releaseHost(env, a)
	ev := eventlog.New(env.Month(),
		fmt.Sprintf("%s rose from cultivation after %d months", a.Name, c.Duration),
		[]string{a.ID}, false, false)
	return []eventlog.Event{ev}
}

func (c *Cultivate) releaseHost(env *sim.Env, a *sim.Avatar) {
	if c.hosting {
		if r := env.World.Region(c.HostRegion); r != nil {
			r.Release(a.ID)
		}
		c.hosting = false
	}
}

func (c *Cultivate) SaveData() map[string]any {
	return map[string]any{
		"start_month": c.StartMonth,
		"duration":    c.Duration,
		"host_region": c.HostRegion,
		"hosting":     c.hosting,
	}
}

func (c *Cultivate) LoadSaveData(data map[string]any) {
	p := sim.Params(data)
	c.StartMonth = p.Int("start_month")
	c.Duration = p.Int("duration")
	c.HostRegion = p.Int("host_region")
	c.hosting, _ = data["hosting"].(bool)
}

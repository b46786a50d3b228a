package sim

import (
	"fmt"
	"log/slog"

	"github.com/cloudrecess/xiansim/pkg/gamedata"
	"github.com/cloudrecess/xiansim/pkg/world"
)

// Simulator drives the world one month per tick. Every phase runs on the
// caller's goroutine in a fixed order; the clock advances last, so all
// phases of one tick observe the same month.
type Simulator struct {
	env        *Env
	gatherings []Gathering

	TickCount int

	// Mortals is the untracked background population feeding awakenings.
	Mortals int

	// Seed is the RNG seed the simulation started from, kept for save files.
	Seed uint64
}

// NewSimulator wires a simulator over an environment.
func NewSimulator(env *Env, gatherings []Gathering, mortals int, seed uint64) *Simulator {
	return &Simulator{
		env:        env,
		gatherings: gatherings,
		Mortals:    mortals,
		Seed:       seed,
	}
}

// Env exposes the environment for the HTTP layer and tests.
func (s *Simulator) Env() *Env { return s.env }

// Tick advances the world by one month.
func (s *Simulator) Tick() {
	env := s.env
	month := env.Month()
	slog.Debug("tick starting", "tick", s.TickCount, "month", month)

	for _, a := range env.Avatars.Living() {
		Advance(env, a)
	}

	s.driftProsperity()
	s.releaseStaleHosts()
	s.ageAvatars()
	s.promoteMortals()
	s.rotatePhenomenon()

	RunGatherings(env, s.gatherings)
	rollWorldEvents(env)

	for _, a := range env.Avatars.Living() {
		refreshIdentity(env, a)
	}
	for _, a := range env.Avatars.Living() {
		a.PruneTempEffects(month)
	}

	env.World.Clock.AdvanceOneMonth()
	s.TickCount++
}

// driftProsperity nudges every city toward prosperity each month.
func (s *Simulator) driftProsperity() {
	for _, r := range s.env.World.RegionsOfKind(world.RegionCity) {
		if r.Prosperity < world.MaxProsperity {
			r.AddProsperity(1)
		}
	}
}

// releaseStaleHosts frees cultivate regions whose host wandered off or
// stopped cultivating, covering claims orphaned by preemption.
func (s *Simulator) releaseStaleHosts() {
	env := s.env
	for _, r := range env.World.RegionsOfKind(world.RegionCultivate) {
		if r.HostID == "" {
			continue
		}
		host, ok := env.Avatars.Get(r.HostID)
		if !ok || !host.Alive || env.World.Map.RegionIDAt(host.X, host.Y) != r.ID {
			r.Release(r.HostID)
		}
	}
}

// ageAvatars advances every living avatar's age and handles deaths from old
// age. A dying avatar's action is cancelled, its hosted regions are freed,
// and a major event is logged.
func (s *Simulator) ageAvatars() {
	env := s.env
	for _, a := range env.Avatars.Living() {
		a.AgeMonths++
		if a.LifespanMonths > 0 && a.AgeMonths >= a.LifespanMonths {
			s.kill(a, fmt.Sprintf("%s passed away at the age of %d, their lifespan exhausted",
				a.Name, a.AgeYears()))
		}
	}
}

// Kill removes an avatar from play for any cause of death.
func (s *Simulator) Kill(a *Avatar, cause string) { s.kill(a, cause) }

func (s *Simulator) kill(a *Avatar, content string) {
	env := s.env
	Preempt(a)
	a.Alive = false
	env.World.ReleaseHost(a.ID)
	env.EmitText(content, true, true, a.ID)
	slog.Info("avatar died", "avatar", a.ID, "name", a.Name)
}

// rotatePhenomenon replaces the celestial phenomenon once the current one
// expires (or none is active), sampling the static table by rarity weight.
func (s *Simulator) rotatePhenomenon() {
	env := s.env
	month := env.Month()
	if p := env.World.Phenomenon; p != nil && p.Active(month) {
		return
	}

	var pool []world.PhenomenonChoice
	for _, row := range env.Data.Rows(gamedata.TablePhenomena) {
		pool = append(pool, world.PhenomenonChoice{
			ID:            row.ID,
			Weight:        row.Int("weight"),
			DurationYears: row.Int("duration_years"),
		})
	}
	next, ok := world.PickPhenomenon(env.RNG, pool, month)
	if !ok {
		return
	}
	env.World.Phenomenon = &next
	if row, found := env.Data.Get(gamedata.TablePhenomena, next.ID); found {
		env.EmitText(
			fmt.Sprintf("The heavens shifted: %s now hangs over the world", row.Str("name")),
			true, true)
	}
}

package sim

import (
	"fmt"

	"github.com/cloudrecess/xiansim/pkg/gamedata"
	"github.com/cloudrecess/xiansim/pkg/world"
	"github.com/google/uuid"
)

// Mortal-pool tunables. The pool is the untracked background population;
// occasionally one member awakens spiritual roots and joins the roster.
const (
	AwakeningAgeYears = 16
	awakeningProb     = 0.02

	// Base lifespan for a freshly awakened cultivator, in years.
	baseLifespanYears = 100
)

// promoteMortals rolls the per-tick awakening chance and, on success, turns
// one mortal into a tracked avatar placed in a random city.
func (s *Simulator) promoteMortals() {
	env := s.env
	if s.Mortals <= 0 {
		return
	}
	if env.RNG.Float64() >= awakeningProb {
		return
	}
	s.Mortals--

	a := NewAvatar(uuid.NewString(), randomName(env))
	if env.RNG.IntN(2) == 0 {
		a.Gender = "male"
	} else {
		a.Gender = "female"
	}
	a.AgeMonths = AwakeningAgeYears * 12
	a.LifespanMonths = baseLifespanYears * 12
	if personas := env.Data.Rows(gamedata.TablePersonas); len(personas) > 0 {
		a.PersonaIDs = []int{personas[env.RNG.IntN(len(personas))].ID}
	}
	placeInCity(env, a)

	env.Avatars.Add(a)
	env.EmitText(
		fmt.Sprintf("%s awakened spiritual roots and stepped onto the path of cultivation", a.Name),
		true, false, a.ID)
}

// randomName samples the static name tables; falls back to a generic label
// when the tables are absent (tests).
func randomName(env *Env) string {
	first := env.Data.Rows(gamedata.TableFirstNames)
	given := env.Data.Rows(gamedata.TableGivenNames)
	if len(first) == 0 || len(given) == 0 {
		return "Wanderer " + uuid.NewString()[:8]
	}
	return first[env.RNG.IntN(len(first))].Str("name") +
		given[env.RNG.IntN(len(given))].Str("name")
}

func placeInCity(env *Env, a *Avatar) {
	cities := env.World.RegionsOfKind(world.RegionCity)
	if len(cities) == 0 {
		a.X, a.Y = env.World.Map.Clamp(0, 0)
		return
	}
	city := cities[env.RNG.IntN(len(cities))]
	x, y, ok := randomTileIn(env, city.ID)
	if !ok {
		x, y = env.World.Map.Clamp(0, 0)
	}
	a.X, a.Y = x, y
	a.KnownRegions[city.ID] = true
}

// randomTileIn samples tiles until one inside the region is found. Bounded
// attempts keep degenerate maps from spinning.
func randomTileIn(env *Env, regionID int) (int, int, bool) {
	m := env.World.Map
	for i := 0; i < 64; i++ {
		x := env.RNG.IntN(m.Width)
		y := env.RNG.IntN(m.Height)
		if m.RegionIDAt(x, y) == regionID {
			return x, y, true
		}
	}
	return 0, 0, false
}

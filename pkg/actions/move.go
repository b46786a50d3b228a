package actions

import (
	"fmt"

	"github.com/cloudrecess/xiansim/pkg/effects"
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/sim"
)

// BaseMoveSpeed is the tiles-per-month movement rate before modifiers.
const BaseMoveSpeed = 3

func moveSpeed(env *sim.Env, a *sim.Avatar) int {
	speed := BaseMoveSpeed + int(effects.Number(env.Effects(a), "move_speed"))
	if speed < 1 {
		speed = 1
	}
	return speed
}

// stepToward moves the avatar up to speed tiles toward (tx, ty), one
// eight-way step at a time, discovering regions it walks through. Returns
// true once the avatar stands on the target.
func stepToward(env *sim.Env, a *sim.Avatar, tx, ty, speed int) bool {
	tx, ty = env.World.Map.Clamp(tx, ty)
	for i := 0; i < speed; i++ {
		if a.X == tx && a.Y == ty {
			break
		}
		a.X += sign(tx - a.X)
		a.Y += sign(ty - a.Y)
		if id := env.World.Map.RegionIDAt(a.X, a.Y); id >= 0 {
			a.KnownRegions[id] = true
		}
	}
	return a.X == tx && a.Y == ty
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

// MoveTo walks to an absolute coordinate. It is a movement primitive other
// actions compose rather than something the AI picks directly.
type MoveTo struct {
	sim.NoState
}

func (m *MoveTo) Name() string { return NameMoveTo }

func (m *MoveTo) Spec() sim.Spec { return sim.Spec{AllowWorldEvents: true} }

func (m *MoveTo) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	if !env.World.Map.InBounds(p.Int("x"), p.Int("y")) {
		return false, "destination is off the map"
	}
	return true, ""
}

func (m *MoveTo) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	return nil
}

func (m *MoveTo) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	if stepToward(env, a, p.Int("x"), p.Int("y"), moveSpeed(env, a)) {
		return sim.Completed()
	}
	return sim.Running()
}

func (m *MoveTo) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	return nil
}

// MoveToRegion walks to the nearest tile of a known region.
type MoveToRegion struct {
	sim.NoState
	TargetX int `json:"target_x"`
	TargetY int `json:"target_y"`
	picked  bool
}

func (m *MoveToRegion) Name() string { return NameMoveRegion }

func (m *MoveToRegion) Spec() sim.Spec {
	return sim.Spec{Actual: true, AllowWorldEvents: true}
}

func (m *MoveToRegion) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	id := p.Int("region_id")
	if env.World.Region(id) == nil {
		return false, "no such region"
	}
	if !a.KnownRegions[id] {
		return false, "region not yet discovered"
	}
	return true, ""
}

func (m *MoveToRegion) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	region := env.World.Region(p.Int("region_id"))
	m.TargetX, m.TargetY, m.picked = nearestTileOf(env, a, region.ID)
	ev := eventlog.New(env.Month(),
		fmt.Sprintf("%s set out for %s", a.Name, region.Name),
		[]string{a.ID}, false, false)
	return &ev
}

func (m *MoveToRegion) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	if !m.picked {
		// Restored from a save or the region has no tiles; re-resolve once.
		m.TargetX, m.TargetY, m.picked = nearestTileOf(env, a, p.Int("region_id"))
		if !m.picked {
			return sim.Failed()
		}
	}
	if stepToward(env, a, m.TargetX, m.TargetY, moveSpeed(env, a)) {
		return sim.Completed()
	}
	return sim.Running()
}

func (m *MoveToRegion) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	return nil
}

func (m *MoveToRegion) SaveData() map[string]any {
	if !m.picked {
		return nil
	}
	return map[string]any{"target_x": m.TargetX, "target_y": m.TargetY}
}

func (m *MoveToRegion) LoadSaveData(data map[string]any) {
	if data == nil {
		return
	}
	p := sim.Params(data)
	m.TargetX, m.TargetY = p.Int("target_x"), p.Int("target_y")
	m.picked = true
}

func nearestTileOf(env *sim.Env, a *sim.Avatar, regionID int) (int, int, bool) {
	m := env.World.Map
	bestX, bestY, bestDist, found := 0, 0, 0, false
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.RegionIDAt(x, y) != regionID {
				continue
			}
			d := chebyshev(a.X-x, a.Y-y)
			if !found || d < bestDist {
				bestX, bestY, bestDist, found = x, y, d, true
			}
		}
	}
	return bestX, bestY, found
}

func chebyshev(dx, dy int) int {
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// FleeDistance is how far MoveAway runs by default.
const FleeDistance = 5

// MoveAway flees from another avatar until out of reach or cornered at the
// map edge. Escape hands control to it.
type MoveAway struct {
	sim.NoState
}

func (m *MoveAway) Name() string { return NameMoveAway }

func (m *MoveAway) Spec() sim.Spec { return sim.Spec{} }

func (m *MoveAway) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	if _, ok := env.Avatars.Get(p.Str("target_id")); !ok {
		return false, "no one to run from"
	}
	return true, ""
}

func (m *MoveAway) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	return nil
}

func (m *MoveAway) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	target, ok := env.Avatars.Get(p.Str("target_id"))
	if !ok || !target.Alive {
		return sim.Completed()
	}
	want := p.Int("distance")
	if want <= 0 {
		want = FleeDistance
	}

	speed := moveSpeed(env, a)
	moved := false
	for i := 0; i < speed; i++ {
		if sim.Distance(a, target) >= want {
			break
		}
		nx, ny := env.World.Map.Clamp(a.X+sign(a.X-target.X), a.Y+sign(a.Y-target.Y))
		if nx == a.X && ny == a.Y {
			break
		}
		a.X, a.Y = nx, ny
		moved = true
		if id := env.World.Map.RegionIDAt(a.X, a.Y); id >= 0 {
			a.KnownRegions[id] = true
		}
	}
	if sim.Distance(a, target) >= want || !moved {
		return sim.Completed()
	}
	return sim.Running()
}

func (m *MoveAway) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	return nil
}

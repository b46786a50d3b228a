package world

import (
	"fmt"
	"sort"
)

// World is the shared mutable state every action reads and writes. All
// mutation happens on the simulator's single goroutine; no locking here.
type World struct {
	Clock      *Clock
	Map        *Map
	Phenomenon *Phenomenon // nil until the first rotation

	regions     map[int]*Region
	regionOrder []int // ascending ids, for deterministic iteration
	sects       map[int]*Sect
	sectOrder   []int
}

// New assembles a world from its parts. Region and sect iteration order is
// fixed to ascending id so ticks are reproducible.
func New(clock *Clock, m *Map, regions []*Region, sects []*Sect) *World {
	w := &World{
		Clock:   clock,
		Map:     m,
		regions: make(map[int]*Region, len(regions)),
		sects:   make(map[int]*Sect, len(sects)),
	}
	for _, r := range regions {
		w.regions[r.ID] = r
		w.regionOrder = append(w.regionOrder, r.ID)
	}
	sort.Ints(w.regionOrder)
	for _, s := range sects {
		w.sects[s.ID] = s
		w.sectOrder = append(w.sectOrder, s.ID)
	}
	sort.Ints(w.sectOrder)
	return w
}

// Region returns a region by id, or nil.
func (w *World) Region(id int) *Region { return w.regions[id] }

// RegionAt returns the region covering (x, y), or nil.
func (w *World) RegionAt(x, y int) *Region {
	id := w.Map.RegionIDAt(x, y)
	if id < 0 {
		return nil
	}
	return w.regions[id]
}

// Regions returns all regions in id order.
func (w *World) Regions() []*Region {
	out := make([]*Region, 0, len(w.regionOrder))
	for _, id := range w.regionOrder {
		out = append(out, w.regions[id])
	}
	return out
}

// RegionsOfKind returns regions of one kind in id order.
func (w *World) RegionsOfKind(kind RegionKind) []*Region {
	var out []*Region
	for _, id := range w.regionOrder {
		if r := w.regions[id]; r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Sect returns a sect by id, or nil.
func (w *World) Sect(id int) *Sect { return w.sects[id] }

// Sects returns all sects in id order.
func (w *World) Sects() []*Sect {
	out := make([]*Sect, 0, len(w.sectOrder))
	for _, id := range w.sectOrder {
		out = append(out, w.sects[id])
	}
	return out
}

// ReleaseHost frees every cultivate region hosted by avatarID. Called on
// death and on departure.
func (w *World) ReleaseHost(avatarID string) {
	for _, id := range w.regionOrder {
		w.regions[id].Release(avatarID)
	}
}

// Validate checks structural invariants that must hold after construction.
func (w *World) Validate() error {
	for _, id := range w.regionOrder {
		r := w.regions[id]
		if r.Kind == RegionCity && (r.Prosperity < MinProsperity || r.Prosperity > MaxProsperity) {
			return fmt.Errorf("region %d: prosperity %d out of range", r.ID, r.Prosperity)
		}
		if r.Kind == RegionSect && w.sects[r.SectID] == nil {
			return fmt.Errorf("region %d: unknown sect %d", r.ID, r.SectID)
		}
	}
	return nil
}

package sim

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/world"
)

// SaveVersion tags the save-file layout.
const SaveVersion = 1

// SaveFile is the full serialized simulation. Only dynamic state is stored;
// static data (map grids, tables) reloads from the game configs.
type SaveFile struct {
	Meta      SaveMeta      `json:"meta"`
	World     WorldSave     `json:"world"`
	Avatars   []AvatarSave  `json:"avatars"`
	Simulator SimulatorSave `json:"simulator"`
}

// SaveMeta describes the save itself.
type SaveMeta struct {
	Version    int    `json:"version"`
	SaveTime   string `json:"save_time"`
	GameTime   string `json:"game_time"`
	Language   string `json:"language"`
	EventsDB   string `json:"events_db"`
	EventCount int    `json:"event_count"`
}

// WorldSave is the world's dynamic state.
type WorldSave struct {
	ClockMonths int               `json:"clock_months"`
	Regions     []RegionSave      `json:"regions"`
	Phenomenon  *world.Phenomenon `json:"phenomenon,omitempty"`
}

// RegionSave is the per-region mutable state.
type RegionSave struct {
	ID         int    `json:"id"`
	Prosperity int    `json:"prosperity"`
	HostID     string `json:"host_id,omitempty"`
}

// ActionSave captures an in-flight action. In-flight LLM calls are not
// saved; a restored action re-dispatches on its next step.
type ActionSave struct {
	Action   string         `json:"action"`
	Params   Params         `json:"params,omitempty"`
	Status   Status         `json:"status"`
	SaveData map[string]any `json:"save_data,omitempty"`
}

// AvatarSave is one avatar plus its scheduling state.
type AvatarSave struct {
	*Avatar
	PlanQueue []*Plan        `json:"plan_queue,omitempty"`
	Current   *ActionSave    `json:"current,omitempty"`
	Cooldowns map[string]int `json:"cooldowns,omitempty"`
}

// SimulatorSave is the simulator's own counters.
type SimulatorSave struct {
	TickCount int    `json:"tick_count"`
	Mortals   int    `json:"mortals"`
	Seed      uint64 `json:"seed"`
}

// Snapshot captures the simulation as a SaveFile.
func (s *Simulator) Snapshot() SaveFile {
	env := s.env
	c := env.World.Clock

	eventCount, err := env.Events.Count()
	if err != nil {
		eventCount = 0
	}

	var regions []RegionSave
	for _, r := range env.World.Regions() {
		regions = append(regions, RegionSave{ID: r.ID, Prosperity: r.Prosperity, HostID: r.HostID})
	}

	var avatars []AvatarSave
	for _, a := range env.Avatars.All() {
		av := AvatarSave{Avatar: a, PlanQueue: a.plans, Cooldowns: a.cooldowns}
		if cur := a.current; cur != nil {
			av.Current = &ActionSave{
				Action:   cur.Action.Name(),
				Params:   cur.Params,
				Status:   cur.Status,
				SaveData: cur.Action.SaveData(),
			}
		}
		avatars = append(avatars, av)
	}

	return SaveFile{
		Meta: SaveMeta{
			Version:    SaveVersion,
			SaveTime:   time.Now().Format(time.RFC3339),
			GameTime:   fmt.Sprintf("year %d month %d", c.Year(), c.Month()),
			Language:   env.Lang,
			EventsDB:   env.Events.Path(),
			EventCount: eventCount,
		},
		World: WorldSave{
			ClockMonths: c.Now(),
			Regions:     regions,
			Phenomenon:  env.World.Phenomenon,
		},
		Avatars: avatars,
		Simulator: SimulatorSave{
			TickCount: s.TickCount,
			Mortals:   s.Mortals,
			Seed:      s.Seed,
		},
	}
}

// Save writes the snapshot to path as indented JSON, atomically.
func (s *Simulator) Save(path string) error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize save: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create save directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write save: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move save into place: %w", err)
	}
	return nil
}

// ReadSaveFile loads and validates a save file's envelope.
func ReadSaveFile(path string) (*SaveFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read save: %w", err)
	}
	var sf SaveFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse save: %w", err)
	}
	if sf.Meta.Version != SaveVersion {
		return nil, fmt.Errorf("unsupported save version %d", sf.Meta.Version)
	}
	return &sf, nil
}

// Restore replaces the simulation's dynamic state with the save's. All of
// the save is validated and materialized before any live state is touched,
// so a failed restore leaves the prior state intact. In-flight LLM work is
// discarded: restored actions resume as running and re-dispatch on their
// next step.
func (s *Simulator) Restore(sf *SaveFile) error {
	env := s.env

	// Materialize the roster first; unknown actions fail the whole restore.
	roster := NewRoster()
	for i := range sf.Avatars {
		av := sf.Avatars[i]
		if av.Avatar == nil {
			return fmt.Errorf("save avatar %d has no body", i)
		}
		a := av.Avatar
		if a.Materials == nil {
			a.Materials = make(map[int]int)
		}
		if a.Relations == nil {
			a.Relations = make(map[string]*Relation)
		}
		if a.KnownRegions == nil {
			a.KnownRegions = make(map[int]bool)
		}
		a.plans = av.PlanQueue
		a.cooldowns = av.Cooldowns
		if a.cooldowns == nil {
			a.cooldowns = make(map[string]int)
		}
		a.cachedMonth = -1
		a.cachedEffects = nil

		if cur := av.Current; cur != nil {
			action, ok := env.Registry.New(cur.Action)
			if !ok {
				return fmt.Errorf("save references unknown action %q", cur.Action)
			}
			action.LoadSaveData(cur.SaveData)
			a.current = &Instance{Action: action, Params: cur.Params, Status: StatusRunning}
		}
		roster.Add(a)
	}

	for _, rs := range sf.World.Regions {
		if env.World.Region(rs.ID) == nil {
			return fmt.Errorf("save references unknown region %d", rs.ID)
		}
	}

	// Commit.
	env.World.Clock = world.NewClock(sf.World.ClockMonths)
	env.World.Phenomenon = sf.World.Phenomenon
	for _, rs := range sf.World.Regions {
		r := env.World.Region(rs.ID)
		r.Prosperity = rs.Prosperity
		r.HostID = rs.HostID
	}
	env.Avatars = roster
	env.Lang = sf.Meta.Language
	env.RNG = rand.New(rand.NewPCG(sf.Simulator.Seed, sf.Simulator.Seed))
	s.TickCount = sf.Simulator.TickCount
	s.Mortals = sf.Simulator.Mortals
	s.Seed = sf.Simulator.Seed

	s.rebuildRecentEvents()
	return nil
}

// rebuildRecentEvents refills each avatar's recent-event ring from the
// event log, oldest first.
func (s *Simulator) rebuildRecentEvents() {
	env := s.env
	for _, a := range env.Avatars.All() {
		events, err := env.Events.Events(eventlog.Query{AvatarID: a.ID, Limit: RecentEventCap})
		if err != nil {
			continue
		}
		a.recent = nil
		for i := len(events) - 1; i >= 0; i-- {
			a.rememberEvent(events[i])
		}
	}
}

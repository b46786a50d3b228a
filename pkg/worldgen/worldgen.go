// Package worldgen assembles a fresh simulation from the static game
// configs: tables, map grids, regions, sects, the initial cultivator roster,
// and the opening entries of the event log. The build runs in named phases
// so the HTTP layer can report initialization progress.
package worldgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cloudrecess/xiansim/pkg/actions"
	"github.com/cloudrecess/xiansim/pkg/config"
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/gamedata"
	"github.com/cloudrecess/xiansim/pkg/llm"
	"github.com/cloudrecess/xiansim/pkg/sim"
	"github.com/cloudrecess/xiansim/pkg/world"
)

// Build phases, in execution order.
const (
	PhaseScanningAssets = iota
	PhaseLoadingMap
	PhaseProcessingHistory
	PhaseInitializingSects
	PhaseGeneratingAvatars
	PhaseCheckingLLM
	PhaseGeneratingInitialEvents
	PhaseCount
)

var phaseNames = [PhaseCount]string{
	"scanning_assets",
	"loading_map",
	"processing_history",
	"initializing_sects",
	"generating_avatars",
	"checking_llm",
	"generating_initial_events",
}

// PhaseName returns the wire name of a build phase.
func PhaseName(phase int) string {
	if phase < 0 || phase >= PhaseCount {
		return "unknown"
	}
	return phaseNames[phase]
}

// mortalsPerNPC sizes the background mortal pool relative to the initial
// cultivator count.
const mortalsPerNPC = 10

// Builder assembles one simulation.
type Builder struct {
	Cfg    *config.Config
	Client *llm.Client
	Seed   uint64

	// OnPhase, when set, is invoked at the start of every build phase.
	OnPhase func(phase int)
}

// Build runs every phase and returns a ready simulator. The events database
// is created under the configured saves directory.
func (b *Builder) Build(ctx context.Context) (*sim.Simulator, error) {
	cfg := b.Cfg
	rng := rand.New(rand.NewPCG(b.Seed, b.Seed))

	b.enter(PhaseScanningAssets)
	data, err := gamedata.LoadDir(cfg.Paths.GameConfigs)
	if err != nil {
		return nil, fmt.Errorf("scanning assets: %w", err)
	}

	b.enter(PhaseLoadingMap)
	m, regions, err := loadWorldMap(cfg.Paths.GameConfigs, data)
	if err != nil {
		return nil, fmt.Errorf("loading map: %w", err)
	}

	events, err := eventlog.Open(filepath.Join(cfg.Paths.Saves, "events.db"))
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	b.enter(PhaseProcessingHistory)
	history := historyEvents(cfg.Game.WorldHistory)

	b.enter(PhaseInitializingSects)
	sects := buildSects(data, cfg.Game.SectNum)

	w := world.New(world.NewClock(0), m, regions, sects)
	if err := w.Validate(); err != nil {
		_ = events.Close()
		return nil, fmt.Errorf("validating world: %w", err)
	}

	env := sim.NewEnv(ctx, w, sim.NewRoster(), actions.NewRegistry(),
		b.Client, events, data, cfg, rng, cfg.System.Language)

	b.enter(PhaseGeneratingAvatars)
	generateAvatars(env, cfg.Game.InitNPCNum)

	b.enter(PhaseCheckingLLM)
	if err := checkLLM(ctx, b.Client); err != nil {
		_ = events.Close()
		return nil, fmt.Errorf("checking llm: %w", err)
	}

	b.enter(PhaseGeneratingInitialEvents)
	for _, ev := range history {
		env.Emit(ev)
	}
	emitOpeningEvents(env)

	s := sim.NewSimulator(env, actions.DefaultGatherings(),
		cfg.Game.InitNPCNum*mortalsPerNPC, b.Seed)
	slog.Info("world generated",
		"regions", len(regions), "sects", len(sects),
		"avatars", env.Avatars.Len(), "mortals", s.Mortals)
	return s, nil
}

func (b *Builder) enter(phase int) {
	slog.Info("initialization phase", "phase", phase, "name", PhaseName(phase))
	if b.OnPhase != nil {
		b.OnPhase(phase)
	}
}

// loadWorldMap reads the two grid files and the regions table.
func loadWorldMap(dir string, data gamedata.Store) (*world.Map, []*world.Region, error) {
	tileGrid, err := gamedata.LoadGrid(filepath.Join(dir, "tile_map.csv"))
	if err != nil {
		return nil, nil, err
	}
	regionGrid, err := gamedata.LoadGrid(filepath.Join(dir, "region_map.csv"))
	if err != nil {
		return nil, nil, err
	}
	if len(tileGrid) != len(regionGrid) ||
		(len(tileGrid) > 0 && len(tileGrid[0]) != len(regionGrid[0])) {
		return nil, nil, fmt.Errorf("tile and region grids disagree on size")
	}

	tiles := make([][]world.Tile, len(tileGrid))
	for y := range tileGrid {
		tiles[y] = make([]world.Tile, len(tileGrid[y]))
		for x := range tileGrid[y] {
			tiles[y][x] = world.Tile{Type: tileGrid[y][x], RegionID: regionGrid[y][x]}
		}
	}

	var regions []*world.Region
	for _, row := range data.Rows(gamedata.TableRegions) {
		regions = append(regions, regionFromRow(row))
	}
	if len(regions) == 0 {
		return nil, nil, fmt.Errorf("regions table is empty")
	}
	return world.NewMap(tiles), regions, nil
}

func regionFromRow(row gamedata.Row) *world.Region {
	return &world.Region{
		ID:           row.ID,
		Name:         row.Str("name"),
		Kind:         world.RegionKind(row.Str("kind")),
		Huntables:    row.IntList("huntables"),
		Harvestables: row.IntList("harvestables"),
		Minables:     row.IntList("minables"),
		Element:      row.Str("element"),
		Density:      row.Int("density"),
		StoreItems:   row.IntList("store_items"),
		Prosperity:   row.Int("prosperity"),
		SectID:       row.Int("sect_id"),
	}
}

// historyEvents turns the configured world-history text into story events,
// one per non-empty line, all dated to the world epoch.
func historyEvents(history string) []eventlog.Event {
	var out []eventlog.Event
	for _, line := range strings.Split(history, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, eventlog.New(0, line, nil, true, true))
	}
	return out
}

func buildSects(data gamedata.Store, limit int) []*world.Sect {
	rows := data.Rows(gamedata.TableSects)
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	var sects []*world.Sect
	for _, row := range rows {
		s := &world.Sect{
			ID:          row.ID,
			Name:        row.Str("name"),
			RegionID:    row.Int("region_id"),
			Element:     row.Str("element"),
			TechniqueID: row.Int("technique_id"),
		}
		if raw := row.Str("effect"); raw != "" {
			var effect map[string]any
			if err := json.Unmarshal([]byte(raw), &effect); err == nil {
				s.Effect = effect
			}
		}
		sects = append(sects, s)
	}
	return sects
}

// generateAvatars populates the initial roster. Roughly half the cultivators
// join a sect and start at its seat; the rest scatter across the cities.
func generateAvatars(env *sim.Env, count int) {
	sects := env.World.Sects()
	cities := env.World.RegionsOfKind(world.RegionCity)
	personas := env.Data.Rows(gamedata.TablePersonas)

	for i := 0; i < count; i++ {
		a := sim.NewAvatar(uuid.NewString(), randomName(env))
		if env.RNG.IntN(2) == 0 {
			a.Gender = "male"
		} else {
			a.Gender = "female"
		}
		a.AgeMonths = (16 + env.RNG.IntN(40)) * 12
		a.LifespanMonths = (90 + env.RNG.IntN(40)) * 12
		a.Realm = sim.Realm(env.RNG.IntN(3))
		a.Level = 1 + env.RNG.IntN(sim.MaxRealmLevel)
		a.Currency = 50 + env.RNG.IntN(200)
		if len(personas) > 0 {
			a.PersonaIDs = []int{personas[env.RNG.IntN(len(personas))].ID}
		}

		var home *world.Region
		if len(sects) > 0 && env.RNG.IntN(2) == 0 {
			s := sects[env.RNG.IntN(len(sects))]
			a.SectID = s.ID
			a.TechniqueID = s.TechniqueID
			home = env.World.Region(s.RegionID)
		} else if len(cities) > 0 {
			home = cities[env.RNG.IntN(len(cities))]
		}
		placeIn(env, a, home)

		env.Avatars.Add(a)
	}
}

func randomName(env *sim.Env) string {
	first := env.Data.Rows(gamedata.TableFirstNames)
	given := env.Data.Rows(gamedata.TableGivenNames)
	if len(first) == 0 || len(given) == 0 {
		return "Cultivator " + uuid.NewString()[:8]
	}
	return first[env.RNG.IntN(len(first))].Str("name") +
		given[env.RNG.IntN(len(given))].Str("name")
}

func placeIn(env *sim.Env, a *sim.Avatar, home *world.Region) {
	m := env.World.Map
	if home != nil {
		for i := 0; i < 64; i++ {
			x, y := env.RNG.IntN(m.Width), env.RNG.IntN(m.Height)
			if m.RegionIDAt(x, y) == home.ID {
				a.X, a.Y = x, y
				a.KnownRegions[home.ID] = true
				return
			}
		}
	}
	a.X, a.Y = env.RNG.IntN(m.Width), env.RNG.IntN(m.Height)
	if id := m.RegionIDAt(a.X, a.Y); id >= 0 {
		a.KnownRegions[id] = true
	}
}

// checkLLM verifies the gateway answers and produces parseable JSON before
// the simulation starts leaning on it.
func checkLLM(ctx context.Context, client *llm.Client) error {
	_, err := client.CallJSON(ctx,
		`Reply with exactly this JSON object: {"ok": true}`, llm.ModeFast, 1)
	return err
}

// emitOpeningEvents seeds the log with the world's starting situation.
func emitOpeningEvents(env *sim.Env) {
	for _, s := range env.World.Sects() {
		var members []string
		for _, a := range env.Avatars.Living() {
			if a.SectID == s.ID {
				members = append(members, a.ID)
			}
		}
		env.Emit(eventlog.New(0,
			fmt.Sprintf("%s stands among the great sects, %d disciples strong", s.Name, len(members)),
			members, true, true))
	}
	env.Emit(eventlog.New(0, "A new era of cultivation begins", nil, true, true))
}

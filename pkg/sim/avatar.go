package sim

import (
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/llm"
)

// RecentEventCap bounds the per-avatar ring of recent events kept in memory
// for prompt assembly; full history lives in the event log.
const RecentEventCap = 64

// Origin tags for objectives.
const (
	OriginUser = "user"
	OriginLLM  = "llm"
)

// Objective is a short or long term goal with provenance.
type Objective struct {
	Text        string `json:"text"`
	Origin      string `json:"origin"`
	CreatedYear int    `json:"created_year"`
}

// Nickname is an earned epithet.
type Nickname struct {
	Text        string `json:"text"`
	Reason      string `json:"reason"`
	CreatedYear int    `json:"created_year"`
}

// Relation is one directed half of a two-sided social link. Mutations go
// through Env.SetRelation which updates both mirrored entries.
type Relation struct {
	Kind  string `json:"kind"`
	Score int    `json:"score"`
}

// TemporaryEffect is a time-boxed modifier source.
type TemporaryEffect struct {
	Source         string         `json:"source"`
	Effect         map[string]any `json:"effect"`
	StartMonth     int            `json:"start_month"`
	DurationMonths int            `json:"duration_months"`
}

// ActiveAt reports whether month falls in [start, start+duration).
func (t *TemporaryEffect) ActiveAt(month int) bool {
	return month >= t.StartMonth && month < t.StartMonth+t.DurationMonths
}

// Effects implements the effect-source contract.
func (t *TemporaryEffect) Effects() map[string]any { return t.Effect }

// Avatar is one simulated character: identity, cultivation progress,
// possessions, social links, and the per-avatar scheduling state (plan
// queue, current action, recent events, effect cache).
type Avatar struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender"`

	AgeMonths      int `json:"age_months"`
	LifespanMonths int `json:"lifespan_months"`

	Realm Realm `json:"realm"`
	Level int   `json:"level"`
	Exp   int   `json:"exp"`

	X int `json:"x"`
	Y int `json:"y"`

	WeaponID    int         `json:"weapon_id"`
	AuxiliaryID int         `json:"auxiliary_id"`
	TechniqueID int         `json:"technique_id"`
	Materials   map[int]int `json:"materials"`
	Currency    int         `json:"currency"`

	SectID         int                  `json:"sect_id"`
	PersonaIDs     []int                `json:"persona_ids"`
	SpiritAnimalID int                  `json:"spirit_animal_id"`
	Relations      map[string]*Relation `json:"relations"`
	KnownRegions   map[int]bool         `json:"known_regions"`

	ShortGoal string     `json:"short_goal"`
	LongGoal  *Objective `json:"long_goal,omitempty"`
	Nick      *Nickname  `json:"nickname,omitempty"`
	Thinking  string     `json:"thinking"`

	TempEffects []*TemporaryEffect `json:"temp_effects"`

	Alive bool `json:"alive"`

	// Scheduling state. Unexported: mutated only through the runtime
	// methods so the one-running-action invariant holds.
	plans     []*Plan
	current   *Instance
	cooldowns map[string]int // action name → month its last run ended

	recent []eventlog.Event

	// Effect cache: recomputed when a source changes (version bump) or the
	// month moves (temporary-effect windows).
	effectsVersion int
	cachedVersion  int
	cachedMonth    int
	cachedEffects  map[string]any

	// In-flight refresh calls (§ nickname / long-term objective). Owned by
	// the simulator's refresh phase; discarded on save/load.
	pendingNickname  *llm.Call
	pendingObjective *llm.Call
}

// NewAvatar returns a minimally initialized living avatar.
func NewAvatar(id, name string) *Avatar {
	return &Avatar{
		ID:           id,
		Name:         name,
		Level:        1,
		Materials:    make(map[int]int),
		Relations:    make(map[string]*Relation),
		KnownRegions: make(map[int]bool),
		Alive:        true,
		cooldowns:    make(map[string]int),
		cachedMonth:  -1,
	}
}

// Current returns the promoted action instance, nil when idle.
func (a *Avatar) Current() *Instance { return a.current }

// Plans returns the queued plans (callers must not mutate).
func (a *Avatar) Plans() []*Plan { return a.plans }

// PushPlan appends a plan to the queue.
func (a *Avatar) PushPlan(p *Plan) { a.plans = append(a.plans, p) }

// RecentEvents returns the bounded ring of recent events, oldest first.
func (a *Avatar) RecentEvents() []eventlog.Event {
	return a.recent
}

func (a *Avatar) rememberEvent(e eventlog.Event) {
	a.recent = append(a.recent, e)
	if len(a.recent) > RecentEventCap {
		a.recent = a.recent[len(a.recent)-RecentEventCap:]
	}
}

// AgeYears is the avatar's age in whole years.
func (a *Avatar) AgeYears() int { return a.AgeMonths / 12 }

// Info is the compact description used in prompts about other avatars.
func (a *Avatar) Info() map[string]any {
	info := map[string]any{
		"id":        a.ID,
		"name":      a.Name,
		"gender":    a.Gender,
		"age_years": a.AgeYears(),
		"realm":     a.Realm.String(),
		"level":     a.Level,
		"position":  []int{a.X, a.Y},
	}
	if a.Nick != nil {
		info["nickname"] = a.Nick.Text
	}
	return info
}

// ExpandedInfo is the full self-description used in prompts about the
// avatar itself: goals, thinking, queued plans.
func (a *Avatar) ExpandedInfo() map[string]any {
	info := a.Info()
	info["short_goal"] = a.ShortGoal
	if a.LongGoal != nil {
		info["long_goal"] = a.LongGoal.Text
	}
	info["thinking"] = a.Thinking
	info["currency"] = a.Currency
	info["plans"] = a.PlanInfos()
	if a.current != nil {
		info["current_action"] = a.current.Action.Name()
	}
	return info
}

// PlanInfos describes the queued plans for prompt assembly.
func (a *Avatar) PlanInfos() []map[string]any {
	out := make([]map[string]any, 0, len(a.plans))
	for _, p := range a.plans {
		out = append(out, map[string]any{"action": p.ActionName, "params": p.Params})
	}
	return out
}

// Distance is the Chebyshev distance between two avatars, matching
// eight-way movement.
func Distance(a, b *Avatar) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

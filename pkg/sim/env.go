package sim

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/cloudrecess/xiansim/pkg/config"
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/gamedata"
	"github.com/cloudrecess/xiansim/pkg/llm"
	"github.com/cloudrecess/xiansim/pkg/world"
)

// Env bundles everything an action or gathering may touch during a tick.
// One Env exists per simulation; actions receive it on every hook call and
// must not retain it across ticks.
type Env struct {
	World    *world.World
	Avatars  *Roster
	Registry *Registry
	LLM      *llm.Client
	Events   *eventlog.Log
	Data     gamedata.Store
	Cfg      *config.Config
	RNG      *rand.Rand
	Lang     string

	// Broadcast, when set, receives every accepted event (websocket fan-out).
	Broadcast func(eventlog.Event)

	ctx context.Context
}

// NewEnv wires an environment. ctx bounds all LLM dispatches made through it.
func NewEnv(ctx context.Context, w *world.World, roster *Roster, reg *Registry,
	client *llm.Client, events *eventlog.Log, data gamedata.Store,
	cfg *config.Config, rng *rand.Rand, lang string) *Env {
	return &Env{
		World:    w,
		Avatars:  roster,
		Registry: reg,
		LLM:      client,
		Events:   events,
		Data:     data,
		Cfg:      cfg,
		RNG:      rng,
		Lang:     lang,
		ctx:      ctx,
	}
}

// Ctx is the context bounding LLM dispatches.
func (e *Env) Ctx() context.Context { return e.ctx }

// Month is the current absolute month.
func (e *Env) Month() int { return e.World.Clock.Now() }

// Emit appends an event to the log. Duplicates (same month, content, and
// related set) are dropped; accepted events are fanned out to the related
// avatars' recent rings and to the broadcast hook. Returns whether the
// event was accepted.
func (e *Env) Emit(ev eventlog.Event) bool {
	ok, err := e.Events.Append(ev)
	if err != nil {
		slog.Error("failed to append event", "event_id", ev.ID, "error", err)
		return false
	}
	if !ok {
		return false
	}
	for _, id := range ev.RelatedIDs {
		if a, found := e.Avatars.Get(id); found {
			a.rememberEvent(ev)
		}
	}
	if e.Broadcast != nil {
		e.Broadcast(ev)
	}
	return true
}

// EmitText builds and emits an event at the current month.
func (e *Env) EmitText(content string, major, story bool, relatedIDs ...string) bool {
	return e.Emit(eventlog.New(e.Month(), content, relatedIDs, major, story))
}

// ForceAction preempts target and runs the named action next. If target is
// already running the same action with equal params the call is a no-op, so
// repeated external nudges do not restart progress.
func (e *Env) ForceAction(target *Avatar, name string, params Params) {
	if cur := target.current; cur != nil &&
		cur.Action.Name() == name && cur.Params.Equal(params) {
		return
	}
	Preempt(target)
	target.plans = []*Plan{NewPlan(name, params)}
	PromoteNextPlan(e, target)
}

// SetRelation writes both mirrored halves of a social link.
func (e *Env) SetRelation(a, b *Avatar, kind string, score int) {
	a.Relations[b.ID] = &Relation{Kind: kind, Score: score}
	b.Relations[a.ID] = &Relation{Kind: kind, Score: score}
}

// AdjustRelation shifts both halves of a link by delta, creating neutral
// links on first contact.
func (e *Env) AdjustRelation(a, b *Avatar, delta int) {
	for _, pair := range [2][2]*Avatar{{a, b}, {b, a}} {
		from, to := pair[0], pair[1]
		rel, ok := from.Relations[to.ID]
		if !ok {
			rel = &Relation{Kind: "acquaintance"}
			from.Relations[to.ID] = rel
		}
		rel.Score += delta
	}
}

// AvatarsNear returns living avatars within dist of a, excluding a itself.
func (e *Env) AvatarsNear(a *Avatar, dist int) []*Avatar {
	var out []*Avatar
	for _, other := range e.Avatars.Living() {
		if other == a {
			continue
		}
		if Distance(a, other) <= dist {
			out = append(out, other)
		}
	}
	return out
}

// WorldInfo is the world snapshot injected into prompts.
func (e *Env) WorldInfo() map[string]any {
	c := e.World.Clock
	info := map[string]any{
		"year":  c.Year(),
		"month": c.Month(),
	}
	if p := e.World.Phenomenon; p != nil {
		if row, ok := e.Data.Get(gamedata.TablePhenomena, p.ID); ok {
			info["phenomenon"] = row.Str("name")
		}
	}
	regions := make([]map[string]any, 0)
	for _, r := range e.World.Regions() {
		regions = append(regions, map[string]any{
			"id":         r.ID,
			"name":       r.Name,
			"kind":       string(r.Kind),
			"prosperity": r.Prosperity,
		})
	}
	info["regions"] = regions
	return info
}

// GeneralActionInfos lists the AI-selectable actions for decision prompts.
func (e *Env) GeneralActionInfos() []map[string]any {
	names := e.Registry.ActualOnly()
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		spec, _ := e.Registry.Spec(name)
		out = append(out, map[string]any{
			"name":     name,
			"is_major": spec.IsMajor,
		})
	}
	return out
}

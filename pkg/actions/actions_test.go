package actions

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudrecess/xiansim/pkg/config"
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/gamedata"
	"github.com/cloudrecess/xiansim/pkg/llm"
	"github.com/cloudrecess/xiansim/pkg/sim"
	"github.com/cloudrecess/xiansim/pkg/world"
)

type fakeData map[string][]gamedata.Row

func (f fakeData) Rows(table string) []gamedata.Row { return f[table] }

func (f fakeData) Get(table string, id int) (gamedata.Row, bool) {
	for _, r := range f[table] {
		if r.ID == id {
			return r, true
		}
	}
	return gamedata.Row{}, false
}

// testWorld lays out a 10x10 map: a normal region on the left half, a city
// strip, and a cultivate region in the bottom-right corner.
func testWorld() *world.World {
	tiles := make([][]world.Tile, 10)
	for y := range tiles {
		tiles[y] = make([]world.Tile, 10)
		for x := range tiles[y] {
			id := 1
			switch {
			case x >= 8 && y >= 8:
				id = 3
			case x >= 5:
				id = 2
			}
			tiles[y][x] = world.Tile{Type: 1, RegionID: id}
		}
	}
	regions := []*world.Region{
		{ID: 1, Name: "Darkwood", Kind: world.RegionNormal, Huntables: []int{101}, Harvestables: []int{201}},
		{ID: 2, Name: "Azure City", Kind: world.RegionCity, Prosperity: 50, StoreItems: []int{301, 302}},
		{ID: 3, Name: "Mist Valley", Kind: world.RegionCultivate, Element: "water", Density: 3},
	}
	sects := []*world.Sect{
		{ID: 1, Name: "Azure Cloud Sect", RegionID: 2, TechniqueID: 302},
	}
	return world.New(world.NewClock(0), world.NewMap(tiles), regions, sects)
}

func testData() fakeData {
	return fakeData{
		gamedata.TableItems: []gamedata.Row{
			{ID: 301, Fields: map[string]string{"name": "Iron Sword", "type": "weapon", "price": "50", "effect": `{"attack": 5}`}},
			{ID: 302, Fields: map[string]string{"name": "Azure Cloud Art", "type": "technique", "price": "200", "effect": `{"cultivate_speed": 0.2}`}},
		},
	}
}

func testEnv(t *testing.T, cfg *config.Config) *sim.Env {
	t.Helper()
	log, err := eventlog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	if cfg == nil {
		cfg = config.Default()
	}
	client := llm.NewClient(cfg.LLM, cfg.AI, nil)
	rng := rand.New(rand.NewPCG(11, 11))
	return sim.NewEnv(context.Background(), testWorld(), sim.NewRoster(), NewRegistry(),
		client, log, testData(), cfg, rng, "en")
}

func addAvatar(env *sim.Env, id, name string, x, y int) *sim.Avatar {
	a := sim.NewAvatar(id, name)
	a.X, a.Y = x, y
	a.LifespanMonths = 100 * 12
	env.Avatars.Add(a)
	return a
}

func tick(env *sim.Env) {
	for _, a := range env.Avatars.Living() {
		sim.Advance(env, a)
	}
	env.World.Clock.AdvanceOneMonth()
}

func TestMovement(t *testing.T) {
	t.Run("move_to walks diagonally and discovers regions", func(t *testing.T) {
		env := testEnv(t, nil)
		a := addAvatar(env, "a1", "Li Chen", 0, 0)

		env.ForceAction(a, NameMoveTo, sim.Params{"x": 6, "y": 6})
		tick(env)
		assert.Equal(t, 3, a.X)
		assert.Equal(t, 3, a.Y)
		require.NotNil(t, a.Current(), "still walking")

		tick(env)
		assert.Equal(t, 6, a.X)
		assert.Equal(t, 6, a.Y)
		assert.Nil(t, a.Current(), "arrived")
		assert.True(t, a.KnownRegions[2], "walked into the city")
	})

	t.Run("move_to rejects off-map destinations", func(t *testing.T) {
		env := testEnv(t, nil)
		a := addAvatar(env, "a1", "Li Chen", 0, 0)

		action, _ := env.Registry.New(NameMoveTo)
		ok, reason := action.CanStart(env, a, sim.Params{"x": 99, "y": 0})
		assert.False(t, ok)
		assert.NotEmpty(t, reason)
	})

	t.Run("move_to_region requires discovery", func(t *testing.T) {
		env := testEnv(t, nil)
		a := addAvatar(env, "a1", "Li Chen", 0, 0)

		action, _ := env.Registry.New(NameMoveRegion)
		ok, _ := action.CanStart(env, a, sim.Params{"region_id": 3})
		assert.False(t, ok, "undiscovered region")

		a.KnownRegions[3] = true
		ok, _ = action.CanStart(env, a, sim.Params{"region_id": 3})
		assert.True(t, ok)
	})

	t.Run("move_away opens distance", func(t *testing.T) {
		env := testEnv(t, nil)
		runner := addAvatar(env, "a1", "Li Chen", 4, 4)
		pursuer := addAvatar(env, "a2", "Hei Lang", 5, 4)

		env.ForceAction(runner, NameMoveAway, sim.Params{"target_id": pursuer.ID, "distance": 4})
		for i := 0; i < 3 && runner.Current() != nil; i++ {
			sim.Advance(env, runner)
			env.World.Clock.AdvanceOneMonth()
		}
		assert.GreaterOrEqual(t, sim.Distance(runner, pursuer), 4)
	})
}

func TestGatherActions(t *testing.T) {
	t.Run("hunt accumulates materials over its duration", func(t *testing.T) {
		env := testEnv(t, nil)
		a := addAvatar(env, "a1", "Li Chen", 0, 0)

		env.ForceAction(a, NameHunt, sim.Params{"duration": 3})
		for i := 0; i < 3; i++ {
			require.NotNil(t, a.Current())
			tick(env)
		}
		assert.Nil(t, a.Current())
		assert.Equal(t, 3, a.Materials[101], "one kill per month")
	})

	t.Run("harvest refuses barren ground", func(t *testing.T) {
		env := testEnv(t, nil)
		a := addAvatar(env, "a1", "Li Chen", 6, 0) // city tile

		action, _ := env.Registry.New(NameHarvest)
		ok, _ := action.CanStart(env, a, nil)
		assert.False(t, ok)
	})

	t.Run("mine requires a lode", func(t *testing.T) {
		env := testEnv(t, nil)
		a := addAvatar(env, "a1", "Li Chen", 0, 0) // Darkwood has no minables

		action, _ := env.Registry.New(NameMine)
		ok, _ := action.CanStart(env, a, nil)
		assert.False(t, ok)
	})
}

func TestDurationReduction(t *testing.T) {
	t.Run("halved duration completes in half the months", func(t *testing.T) {
		env := testEnv(t, nil)
		a := addAvatar(env, "a1", "Li Chen", 0, 0)
		a.AddTempEffect(&sim.TemporaryEffect{
			Source:         "swift_winds_blessing",
			Effect:         map[string]any{"duration_reduction": 0.5},
			StartMonth:     0,
			DurationMonths: 120,
		})

		env.ForceAction(a, NameHunt, sim.Params{"duration": 10})
		for i := 0; i < 5; i++ {
			require.NotNil(t, a.Current())
			tick(env)
		}
		assert.Nil(t, a.Current(), "a ten-month hunt takes five")
	})

	t.Run("reduction clamps at ninety percent", func(t *testing.T) {
		env := testEnv(t, nil)
		a := addAvatar(env, "a1", "Li Chen", 0, 0)
		a.AddTempEffect(&sim.TemporaryEffect{
			Source:         "swift_winds_blessing",
			Effect:         map[string]any{"duration_reduction": 5.0},
			StartMonth:     0,
			DurationMonths: 120,
		})

		env.ForceAction(a, NameHunt, sim.Params{"duration": 10})
		require.NotNil(t, a.Current())
		tick(env)
		assert.Nil(t, a.Current(), "ten months shrink to one, never zero")
	})
}

func TestCultivate(t *testing.T) {
	t.Run("claims and releases the host slot", func(t *testing.T) {
		env := testEnv(t, nil)
		a := addAvatar(env, "a1", "Li Chen", 9, 9)

		env.ForceAction(a, NameCultivate, sim.Params{"duration": 2})
		assert.Equal(t, a.ID, env.World.Region(3).HostID)

		tick(env)
		tick(env)
		assert.Nil(t, a.Current())
		assert.Empty(t, env.World.Region(3).HostID, "released on finish")
		assert.Greater(t, a.Exp+a.Level, 1, "gained experience")
	})

	t.Run("second cultivator cannot claim an occupied region", func(t *testing.T) {
		env := testEnv(t, nil)
		first := addAvatar(env, "a1", "Li Chen", 9, 9)
		second := addAvatar(env, "a2", "Hei Lang", 8, 8)

		env.ForceAction(first, NameCultivate, sim.Params{"duration": 12})

		action, _ := env.Registry.New(NameCultivate)
		ok, reason := action.CanStart(env, second, nil)
		assert.False(t, ok)
		assert.Contains(t, reason, "claimed")
	})
}

func TestRetreatSuccessRate(t *testing.T) {
	assert.InDelta(t, 0.5, RetreatSuccessRate(sim.RealmQiRefining, 0), 1e-9)
	assert.InDelta(t, 0.4, RetreatSuccessRate(sim.RealmFoundation, 0), 1e-9)
	assert.InDelta(t, 0.1, RetreatSuccessRate(sim.RealmAscension, 0), 1e-9, "floor")
	assert.InDelta(t, 1.0, RetreatSuccessRate(sim.RealmQiRefining, 0.8), 1e-9, "ceiling")
	assert.InDelta(t, 0.3, RetreatSuccessRate(sim.RealmSpiritSevering, 0.2), 1e-9)
}

func TestEscapeRate(t *testing.T) {
	assert.InDelta(t, 0.5, EscapeRate(sim.RealmQiRefining, sim.RealmQiRefining, 0), 1e-9)
	assert.InDelta(t, 0.4, EscapeRate(sim.RealmQiRefining, sim.RealmFoundation, 0), 1e-9)
	assert.InDelta(t, 0.9, EscapeRate(sim.RealmAscension, sim.RealmQiRefining, 0), 1e-9, "ceiling")
	assert.InDelta(t, 0.1, EscapeRate(sim.RealmQiRefining, sim.RealmAscension, 0), 1e-9, "floor")
}

func TestEscapeHandsOffControl(t *testing.T) {
	env := testEnv(t, nil)
	runner := addAvatar(env, "a1", "Li Chen", 4, 4)
	pursuer := addAvatar(env, "a2", "Hei Lang", 5, 4)

	env.ForceAction(runner, NameEscape, sim.Params{"target_id": pursuer.ID})
	sim.Advance(env, runner)

	require.NotNil(t, runner.Current(), "escape replaced itself")
	next := runner.Current().Action.Name()
	assert.Contains(t, []string{NameMoveAway, NameAttack}, next)
	assert.NotEqual(t, NameEscape, next)

	events, err := env.Events.Events(eventlog.Query{AvatarID: runner.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, events, "the outcome is logged either way")
}

func TestBuyItem(t *testing.T) {
	env := testEnv(t, nil)
	a := addAvatar(env, "a1", "Li Chen", 6, 0)
	a.Currency = 60

	t.Run("rejects what the city does not stock", func(t *testing.T) {
		action, _ := env.Registry.New(NameBuyItem)
		ok, _ := action.CanStart(env, a, sim.Params{"item_id": 999})
		assert.False(t, ok)
	})

	t.Run("weapon purchase equips and charges", func(t *testing.T) {
		env.ForceAction(a, NameBuyItem, sim.Params{"item_id": 301})
		sim.Advance(env, a)

		assert.Nil(t, a.Current())
		assert.Equal(t, 301, a.WeaponID)
		assert.Equal(t, 10, a.Currency)
		assert.Equal(t, 5.0, env.Effects(a)["attack"], "equipment effect applies")
	})

	t.Run("cannot afford twice", func(t *testing.T) {
		action, _ := env.Registry.New(NameBuyItem)
		ok, reason := action.CanStart(env, a, sim.Params{"item_id": 301})
		assert.False(t, ok)
		assert.Contains(t, reason, "afford")
	})
}

// feedbackServer is an OpenAI-style endpoint that always answers with the
// given JSON payload.
func feedbackServer(t *testing.T, payload map[string]any) *httptest.Server {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": string(body)}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func writeTemplate(t *testing.T, dir, lang, task string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, lang), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, lang, task+".tmpl"),
		[]byte("You are {{.expanded_info}}. Options: {{.feedback_options}}. Reply as JSON."),
		0o644))
}

func TestConversation(t *testing.T) {
	server := feedbackServer(t, map[string]any{
		"feedback": "talk",
		"content":  "Li Chen and Hei Lang spoke of the coming phenomenon",
		"thinking": "a welcome distraction",
	})
	defer server.Close()

	cfg := config.Default()
	cfg.LLM.BaseURL = server.URL
	cfg.LLM.ModelName = "test-model"
	cfg.Paths.Templates = t.TempDir()
	writeTemplate(t, cfg.Paths.Templates, "en", "conversation_feedback")

	env := testEnv(t, cfg)
	one := addAvatar(env, "a1", "Li Chen", 4, 4)
	two := addAvatar(env, "a2", "Hei Lang", 5, 4)

	env.ForceAction(one, NameConverse, sim.Params{"target_id": two.ID})
	env.ForceAction(two, NameConverse, sim.Params{"target_id": one.ID})

	// First step dispatches, later steps harvest the replies.
	for i := 0; i < 200 && (one.Current() != nil || two.Current() != nil); i++ {
		sim.Advance(env, one)
		sim.Advance(env, two)
		time.Sleep(10 * time.Millisecond)
	}
	require.Nil(t, one.Current())
	require.Nil(t, two.Current())

	t.Run("both sides share a single logged exchange", func(t *testing.T) {
		count, err := env.Events.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, count, "the mirrored exchange is deduplicated")
	})

	t.Run("target thinking and relations update", func(t *testing.T) {
		assert.Equal(t, "a welcome distraction", one.Thinking)
		rel, ok := one.Relations[two.ID]
		require.True(t, ok)
		assert.GreaterOrEqual(t, rel.Score, 2, "both exchanges warmed the link")
	})
}

func TestMutualPromptCarriesPlans(t *testing.T) {
	var (
		mu      sync.Mutex
		prompts []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		for _, m := range req.Messages {
			prompts = append(prompts, m.Content)
		}
		mu.Unlock()

		body, err := json.Marshal(map[string]any{"feedback": "reject"})
		require.NoError(t, err)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": string(body)}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.LLM.BaseURL = server.URL
	cfg.LLM.ModelName = "test-model"
	cfg.Paths.Templates = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Paths.Templates, "en"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Paths.Templates, "en", "conversation_feedback.tmpl"),
		[]byte("Approaching you: {{.avatar_infos}}. Reply as JSON."),
		0o644))

	env := testEnv(t, cfg)
	one := addAvatar(env, "a1", "Li Chen", 4, 4)
	two := addAvatar(env, "a2", "Hei Lang", 5, 4)

	env.ForceAction(one, NameConverse, sim.Params{"target_id": two.ID})
	one.PushPlan(sim.NewPlan(NameCultivate, nil))

	for i := 0; i < 200 && one.Current() != nil &&
		one.Current().Action.Name() == NameConverse; i++ {
		sim.Advance(env, one)
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	joined := strings.Join(prompts, "\n")
	mu.Unlock()
	assert.Contains(t, joined, NameCultivate, "the initiator's queued plans ride along")
}

func TestSectTeaching(t *testing.T) {
	narration := "Elder Shen expounded the Azure Cloud Art beneath the bell tower"
	server := feedbackServer(t, map[string]any{"content": narration})
	defer server.Close()

	cfg := config.Default()
	cfg.LLM.BaseURL = server.URL
	cfg.LLM.ModelName = "test-model"
	cfg.Paths.Templates = t.TempDir()
	writeTemplate(t, cfg.Paths.Templates, "en", "sect_teaching")

	env := testEnv(t, cfg)
	env.Cfg.Game.Gathering.SectTeachingProb = 1.0

	master := addAvatar(env, "m1", "Elder Shen", 6, 1)
	master.SectID = 1
	master.Realm = sim.RealmGoldenCore
	master.TechniqueID = 302

	student := addAvatar(env, "s1", "Li Chen", 6, 2)
	student.SectID = 1

	teaching := &SectTeaching{}
	require.True(t, teaching.ShouldStart(env))

	before := student.Exp + student.Level*1000
	sim.RunGatherings(env, []sim.Gathering{teaching})
	after := student.Exp + student.Level*1000
	assert.Greater(t, after, before, "students gain experience")
	assert.Equal(t, sim.RealmGoldenCore, master.Realm, "teacher unchanged")

	events, err := env.Events.Events(eventlog.Query{AvatarID: student.ID})
	require.NoError(t, err)

	var sawGain, sawStory bool
	for _, ev := range events {
		if strings.Contains(ev.Content, "gained") && strings.Contains(ev.Content, "experience") {
			sawGain = true
			assert.False(t, ev.IsMajor, "routine gains are minor")
		}
		if ev.Content == narration {
			sawStory = true
			assert.True(t, ev.IsStory, "the session is narrated as a story event")
		}
	}
	assert.True(t, sawGain, "each student's gain is logged")
	assert.True(t, sawStory)
}

func TestSectTeachingNarrationFallback(t *testing.T) {
	env := testEnv(t, nil) // no reachable model, no template
	env.Cfg.Game.Gathering.SectTeachingProb = 1.0

	master := addAvatar(env, "m1", "Elder Shen", 6, 1)
	master.SectID = 1
	student := addAvatar(env, "s1", "Li Chen", 6, 2)
	student.SectID = 1

	teaching := &SectTeaching{}
	require.True(t, teaching.ShouldStart(env))
	sim.RunGatherings(env, []sim.Gathering{teaching})

	events, err := env.Events.Events(eventlog.Query{AvatarID: master.ID})
	require.NoError(t, err)

	var sawFallback bool
	for _, ev := range events {
		if strings.Contains(ev.Content, "tempered their foundations") {
			sawFallback = true
			assert.True(t, ev.IsStory)
		}
	}
	assert.True(t, sawFallback, "a canned line covers a failed narration call")
}

func TestGatheringSkipsBusyAvatars(t *testing.T) {
	env := testEnv(t, nil)
	env.Cfg.Game.Gathering.SectTeachingProb = 1.0

	master := addAvatar(env, "m1", "Elder Shen", 6, 1)
	master.SectID = 1
	sealed := addAvatar(env, "s1", "Li Chen", 6, 2)
	sealed.SectID = 1

	// Retreat forbids gatherings; the group drops below the minimum.
	env.ForceAction(sealed, NameRetreat, nil)
	require.NotNil(t, sealed.Current())

	teaching := &SectTeaching{}
	require.True(t, teaching.ShouldStart(env))
	before, err := env.Events.Count()
	require.NoError(t, err)

	sim.RunGatherings(env, []sim.Gathering{teaching})
	after, err := env.Events.Count()
	require.NoError(t, err)
	assert.Equal(t, before, after, "no session without enough free disciples")
}

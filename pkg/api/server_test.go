package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudrecess/xiansim/pkg/actions"
	"github.com/cloudrecess/xiansim/pkg/config"
	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/gamedata"
	"github.com/cloudrecess/xiansim/pkg/llm"
	"github.com/cloudrecess/xiansim/pkg/sim"
	"github.com/cloudrecess/xiansim/pkg/world"
)

func init() {
	gin.SetMode(gin.TestMode)
}

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

func testSimulator(t *testing.T, cfg *config.Config) *sim.Simulator {
	t.Helper()
	log, err := eventlog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	tiles := make([][]world.Tile, 4)
	for y := range tiles {
		tiles[y] = make([]world.Tile, 4)
		for x := range tiles[y] {
			tiles[y][x] = world.Tile{Type: 1, RegionID: 1}
		}
	}
	w := world.New(world.NewClock(0), world.NewMap(tiles),
		[]*world.Region{{ID: 1, Name: "Azure City", Kind: world.RegionCity, Prosperity: 50}}, nil)

	client := llm.NewClient(cfg.LLM, cfg.AI, nil)
	env := sim.NewEnv(context.Background(), w, sim.NewRoster(), actions.NewRegistry(),
		client, log, fakeData{}, cfg, rand.New(rand.NewPCG(3, 3)), "en")

	a := sim.NewAvatar("a1", "Li Chen")
	a.LifespanMonths = 100 * 12
	env.Avatars.Add(a)

	return sim.NewSimulator(env, nil, 10, 3)
}

func testServer(t *testing.T, build BuildFunc) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Saves = t.TempDir()
	if build == nil {
		build = func(ctx context.Context, onPhase func(int)) (*sim.Simulator, error) {
			return testSimulator(t, cfg), nil
		}
	}
	return NewServer(cfg, NewInitializer(build))
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := testServer(t, nil)
	rec := doJSON(t, s.Router(), http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, string(InitIdle), body["init"])
}

func TestInitialization(t *testing.T) {
	t.Run("runs to ready and attaches the simulator", func(t *testing.T) {
		s := testServer(t, nil)
		router := s.Router()

		rec := doJSON(t, router, http.MethodPost, "/api/init", nil)
		require.Equal(t, http.StatusAccepted, rec.Code)

		require.Eventually(t, s.init.Ready, 2*time.Second, 10*time.Millisecond)

		status := decode(t, doJSON(t, router, http.MethodGet, "/api/init/status", nil))
		assert.Equal(t, string(InitReady), status["status"])
		assert.Equal(t, float64(100), status["progress"])

		rec = doJSON(t, router, http.MethodPost, "/api/tick", nil)
		assert.Equal(t, http.StatusOK, rec.Code, "simulator attached")
	})

	t.Run("rejects concurrent starts", func(t *testing.T) {
		release := make(chan struct{})
		s := testServer(t, func(ctx context.Context, onPhase func(int)) (*sim.Simulator, error) {
			onPhase(0)
			<-release
			return nil, context.Canceled
		})
		router := s.Router()

		require.Equal(t, http.StatusAccepted, doJSON(t, router, http.MethodPost, "/api/init", nil).Code)
		assert.Equal(t, http.StatusConflict, doJSON(t, router, http.MethodPost, "/api/init", nil).Code)
		close(release)
	})

	t.Run("build failure lands in error state with phase", func(t *testing.T) {
		s := testServer(t, func(ctx context.Context, onPhase func(int)) (*sim.Simulator, error) {
			onPhase(0)
			onPhase(5)
			return nil, assert.AnError
		})
		router := s.Router()

		require.Equal(t, http.StatusAccepted, doJSON(t, router, http.MethodPost, "/api/init", nil).Code)
		require.Eventually(t, func() bool {
			return s.init.State().Status == InitError
		}, 2*time.Second, 10*time.Millisecond)

		status := decode(t, doJSON(t, router, http.MethodGet, "/api/init/status", nil))
		assert.Equal(t, "checking_llm", status["phase_name"])
		assert.Equal(t, float64(70), status["progress"])
		assert.NotEmpty(t, status["error"])
	})
}

func TestHandlersRequireSimulation(t *testing.T) {
	s := testServer(t, nil)
	router := s.Router()

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/tick"},
		{http.MethodGet, "/api/world"},
		{http.MethodGet, "/api/avatars"},
		{http.MethodGet, "/api/events"},
	} {
		rec := doJSON(t, router, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestWorldAndAvatarEndpoints(t *testing.T) {
	s := testServer(t, nil)
	s.AttachSimulator(testSimulator(t, s.cfg))
	router := s.Router()

	t.Run("world snapshot", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/world", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(1), body["year"])
		assert.Equal(t, float64(1), body["avatar_count"])
	})

	t.Run("avatar listing and detail", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/avatars", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/api/avatars/a1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "Li Chen", body["name"])

		rec = doJSON(t, router, http.MethodGet, "/api/avatars/nobody", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("tick advances months", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/tick?months=3", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(4), body["month"])

		rec = doJSON(t, router, http.MethodPost, "/api/tick?months=0", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("user objective sticks", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/avatars/a1/objective",
			map[string]string{"text": "reach the Golden Core realm"})
		require.Equal(t, http.StatusOK, rec.Code)

		var goal string
		s.withSim(func(simulator *sim.Simulator) {
			a, _ := simulator.Env().Avatars.Get("a1")
			goal = a.LongGoal.Text
		})
		assert.Equal(t, "reach the Golden Core realm", goal)
	})

	t.Run("forced action validates the name", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/avatars/a1/action",
			map[string]any{"action": "no_such_action"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, router, http.MethodPost, "/api/avatars/a1/action",
			map[string]any{"action": actions.NameIdle, "params": map[string]any{"duration": 2}})
		require.Equal(t, http.StatusOK, rec.Code)

		var current string
		s.withSim(func(simulator *sim.Simulator) {
			a, _ := simulator.Env().Avatars.Get("a1")
			current = a.Current().Action.Name()
		})
		assert.Equal(t, actions.NameIdle, current)
	})
}

func TestEventsEndpoint(t *testing.T) {
	s := testServer(t, nil)
	s.AttachSimulator(testSimulator(t, s.cfg))
	router := s.Router()

	s.withSim(func(simulator *sim.Simulator) {
		env := simulator.Env()
		env.EmitText("a duel shook the city", true, false, "a1")
		env.EmitText("a quiet month passed", false, false, "a1")
	})

	rec := doJSON(t, router, http.MethodGet, "/api/events?avatar_id=a1&major=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	events := body["events"].([]any)
	require.Len(t, events, 1)

	rec = doJSON(t, router, http.MethodGet, "/api/events?major=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveLoadEndpoints(t *testing.T) {
	s := testServer(t, nil)
	s.AttachSimulator(testSimulator(t, s.cfg))
	router := s.Router()

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/api/tick?months=2", nil).Code)
	rec := doJSON(t, router, http.MethodPost, "/api/save", map[string]string{"name": "slot1.json"})
	require.Equal(t, http.StatusOK, rec.Code)

	// More ticks, then load rolls the clock back.
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/api/tick?months=5", nil).Code)
	rec = doJSON(t, router, http.MethodPost, "/api/load", map[string]string{"name": "slot1.json"})
	require.Equal(t, http.StatusOK, rec.Code)

	var months int
	s.withSim(func(simulator *sim.Simulator) {
		months = simulator.Env().World.Clock.Now()
	})
	assert.Equal(t, 2, months)

	rec = doJSON(t, router, http.MethodPost, "/api/load", map[string]string{"name": "missing.json"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebsocketStream(t *testing.T) {
	s := testServer(t, nil)
	s.AttachSimulator(testSimulator(t, s.cfg))

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	s.withSim(func(simulator *sim.Simulator) {
		simulator.Env().EmitText("the heavens rumbled", true, false)
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev eventlog.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "the heavens rumbled", ev.Content)
	assert.True(t, ev.IsMajor)
}

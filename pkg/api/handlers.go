package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/sim"
)

func noSimulation(c *gin.Context) {
	c.JSON(http.StatusConflict, gin.H{"error": "no active simulation"})
}

func (s *Server) handleTick(c *gin.Context) {
	months := 1
	if raw := c.Query("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 120 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "months must be in [1, 120]"})
			return
		}
		months = n
	}

	var resp gin.H
	ok := s.withSim(func(simulator *sim.Simulator) {
		for i := 0; i < months; i++ {
			simulator.Tick()
		}
		clock := simulator.Env().World.Clock
		resp = gin.H{
			"tick_count": simulator.TickCount,
			"year":       clock.Year(),
			"month":      clock.Month(),
		}
	})
	if !ok {
		noSimulation(c)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWorld(c *gin.Context) {
	var resp map[string]any
	ok := s.withSim(func(simulator *sim.Simulator) {
		env := simulator.Env()
		resp = env.WorldInfo()
		resp["avatar_count"] = len(env.Avatars.Living())
		resp["mortals"] = simulator.Mortals
	})
	if !ok {
		noSimulation(c)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAvatars(c *gin.Context) {
	var resp []map[string]any
	ok := s.withSim(func(simulator *sim.Simulator) {
		for _, a := range simulator.Env().Avatars.Living() {
			resp = append(resp, a.Info())
		}
	})
	if !ok {
		noSimulation(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatars": resp})
}

func (s *Server) handleAvatar(c *gin.Context) {
	var (
		resp  map[string]any
		found bool
	)
	ok := s.withSim(func(simulator *sim.Simulator) {
		a, exists := simulator.Env().Avatars.Get(c.Param("id"))
		if !exists {
			return
		}
		found = true
		resp = a.ExpandedInfo()
		resp["alive"] = a.Alive
	})
	if !ok {
		noSimulation(c)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "avatar not found"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

type objectiveRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleSetObjective(c *gin.Context) {
	var req objectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var found bool
	ok := s.withSim(func(simulator *sim.Simulator) {
		env := simulator.Env()
		a, exists := env.Avatars.Get(c.Param("id"))
		if !exists || !a.Alive {
			return
		}
		found = true
		env.SetUserObjective(a, req.Text)
	})
	if !ok {
		noSimulation(c)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "avatar not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type actionRequest struct {
	Action string         `json:"action" binding:"required"`
	Params map[string]any `json:"params"`
}

func (s *Server) handleForceAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		found   bool
		unknown bool
	)
	ok := s.withSim(func(simulator *sim.Simulator) {
		env := simulator.Env()
		if _, exists := env.Registry.Spec(req.Action); !exists {
			unknown = true
			return
		}
		a, exists := env.Avatars.Get(c.Param("id"))
		if !exists || !a.Alive {
			return
		}
		found = true
		env.ForceAction(a, req.Action, req.Params)
	})
	if !ok {
		noSimulation(c)
		return
	}
	if unknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "avatar not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleEvents(c *gin.Context) {
	q := eventlog.Query{AvatarID: c.Query("avatar_id")}
	if raw := c.Query("major"); raw != "" {
		major, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "major must be a boolean"})
			return
		}
		q.Major = &major
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		q.Limit = limit
	}

	var (
		events []eventlog.Event
		qErr   error
	)
	ok := s.withSim(func(simulator *sim.Simulator) {
		events, qErr = simulator.Env().Events.Events(q)
	})
	if !ok {
		noSimulation(c)
		return
	}
	if qErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": qErr.Error()})
		return
	}
	if events == nil {
		events = []eventlog.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type saveRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSave(c *gin.Context) {
	var req saveRequest
	_ = c.ShouldBindJSON(&req)

	var saveErr error
	path := s.savePath(req.Name)
	ok := s.withSim(func(simulator *sim.Simulator) {
		saveErr = simulator.Save(path)
	})
	if !ok {
		noSimulation(c)
		return
	}
	if saveErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": saveErr.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "path": path})
}

func (s *Server) handleLoad(c *gin.Context) {
	var req saveRequest
	_ = c.ShouldBindJSON(&req)

	sf, err := sim.ReadSaveFile(s.savePath(req.Name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var loadErr error
	ok := s.withSim(func(simulator *sim.Simulator) {
		loadErr = simulator.Restore(sf)
	})
	if !ok {
		noSimulation(c)
		return
	}
	if loadErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": loadErr.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

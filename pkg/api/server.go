// Package api is the HTTP surface: initialization control, world and avatar
// inspection, event queries, manual ticking, save/load, and a websocket
// event stream.
package api

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/cloudrecess/xiansim/pkg/config"
	"github.com/cloudrecess/xiansim/pkg/sim"
	"github.com/cloudrecess/xiansim/pkg/version"
)

// Server owns the simulator handle and serializes access to it: the tick
// loop and every mutating handler take the same lock, keeping the
// single-goroutine simulation contract intact behind a concurrent listener.
type Server struct {
	cfg  *config.Config
	init *Initializer
	hub  *Hub

	mu  sync.Mutex
	sim *sim.Simulator
}

// NewServer wires the server. The simulator is nil until initialization or a
// load completes.
func NewServer(cfg *config.Config, init *Initializer) *Server {
	return &Server{cfg: cfg, init: init, hub: NewHub()}
}

// Hub exposes the websocket hub for broadcast wiring.
func (s *Server) Hub() *Hub { return s.hub }

// AttachSimulator installs a ready simulator and routes its events to the
// websocket hub.
func (s *Server) AttachSimulator(simulator *sim.Simulator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	simulator.Env().Broadcast = s.hub.Broadcast
	s.sim = simulator
}

// withSim runs fn holding the simulator lock; it reports false when no
// simulation is active yet.
func (s *Server) withSim(fn func(*sim.Simulator)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sim == nil {
		return false
	}
	fn(s.sim)
	return true
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/ws", func(c *gin.Context) { s.hub.Handle(c.Writer, c.Request) })

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/init", s.handleInitStart)
		apiGroup.GET("/init/status", s.handleInitStatus)

		apiGroup.POST("/tick", s.handleTick)
		apiGroup.GET("/world", s.handleWorld)
		apiGroup.GET("/avatars", s.handleAvatars)
		apiGroup.GET("/avatars/:id", s.handleAvatar)
		apiGroup.POST("/avatars/:id/objective", s.handleSetObjective)
		apiGroup.POST("/avatars/:id/action", s.handleForceAction)
		apiGroup.GET("/events", s.handleEvents)

		apiGroup.POST("/save", s.handleSave)
		apiGroup.POST("/load", s.handleLoad)
	}
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": version.Full(),
		"init":    s.init.State().Status,
	})
}

func (s *Server) handleInitStart(c *gin.Context) {
	err := s.init.Start(context.Background(), s.AttachSimulator)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, s.init.State())
}

func (s *Server) handleInitStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.init.State())
}

func (s *Server) savePath(name string) string {
	if name == "" {
		name = "save.json"
	}
	return filepath.Join(s.cfg.Paths.Saves, filepath.Base(name))
}

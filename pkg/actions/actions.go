// Package actions is the concrete action library: movement, gathering,
// cultivation, combat, conversation, trade, and the AI decision step, plus
// the world gatherings. NewRegistry wires the full set.
package actions

import (
	"github.com/cloudrecess/xiansim/pkg/sim"
)

// Action names. Plans and save files reference these.
const (
	NameIdle       = "idle"
	NameDecide     = "decide"
	NameMoveTo     = "move_to"
	NameMoveRegion = "move_to_region"
	NameMoveAway   = "move_away_from_avatar"
	NameHunt       = "hunt"
	NameHarvest    = "harvest"
	NameMine       = "mine"
	NameCultivate  = "cultivate"
	NameRetreat    = "retreat"
	NameAttack     = "attack"
	NameEscape     = "escape"
	NameConverse   = "conversation"
	NameBuyItem    = "buy_item"
)

// NewRegistry returns a registry with every action type wired.
func NewRegistry() *sim.Registry {
	reg := sim.NewRegistry()
	reg.MustRegister(func() sim.Action { return &Idle{} })
	reg.MustRegister(func() sim.Action { return &Decide{} })
	reg.MustRegister(func() sim.Action { return &MoveTo{} })
	reg.MustRegister(func() sim.Action { return &MoveToRegion{} })
	reg.MustRegister(func() sim.Action { return &MoveAway{} })
	reg.MustRegister(func() sim.Action { return newHunt() })
	reg.MustRegister(func() sim.Action { return newHarvest() })
	reg.MustRegister(func() sim.Action { return newMine() })
	reg.MustRegister(func() sim.Action { return &Cultivate{} })
	reg.MustRegister(func() sim.Action { return &Retreat{} })
	reg.MustRegister(func() sim.Action { return &Attack{} })
	reg.MustRegister(func() sim.Action { return &Escape{} })
	reg.MustRegister(func() sim.Action { return &Conversation{} })
	reg.MustRegister(func() sim.Action { return &BuyItem{} })
	return reg
}

// DefaultGatherings returns the standard world gatherings.
func DefaultGatherings() []sim.Gathering {
	return []sim.Gathering{
		&SectTeaching{},
		&Auction{},
	}
}

package actions

import (
	"fmt"

	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/gamedata"
	"github.com/cloudrecess/xiansim/pkg/sim"
	"github.com/cloudrecess/xiansim/pkg/world"
)

// Item type discriminators in the items table.
const (
	ItemTypeWeapon    = "weapon"
	ItemTypeAuxiliary = "auxiliary"
	ItemTypeTechnique = "technique"
)

// BuyItem purchases one listed item from the city the avatar stands in.
// Equipment and techniques are put to use immediately; everything else goes
// into the satchel.
type BuyItem struct {
	sim.NoState
}

func (b *BuyItem) Name() string { return NameBuyItem }

func (b *BuyItem) Spec() sim.Spec {
	return sim.Spec{Actual: true, AllowGathering: true}
}

func (b *BuyItem) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	r := env.World.RegionAt(a.X, a.Y)
	if r == nil || r.Kind != world.RegionCity {
		return false, "not in a city"
	}
	itemID := p.Int("item_id")
	if !containsInt(r.StoreItems, itemID) {
		return false, "the stores do not stock that"
	}
	row, ok := env.Data.Get(gamedata.TableItems, itemID)
	if !ok {
		return false, "no such item"
	}
	if a.Currency < row.Int("price") {
		return false, "cannot afford it"
	}
	return true, ""
}

func (b *BuyItem) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	return nil
}

func (b *BuyItem) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	itemID := p.Int("item_id")
	row, ok := env.Data.Get(gamedata.TableItems, itemID)
	if !ok {
		return sim.Failed()
	}
	price := row.Int("price")
	if a.Currency < price {
		return sim.Failed()
	}
	a.Currency -= price

	switch row.Str("type") {
	case ItemTypeWeapon:
		a.WeaponID = itemID
		a.InvalidateEffects()
	case ItemTypeAuxiliary:
		a.AuxiliaryID = itemID
		a.InvalidateEffects()
	case ItemTypeTechnique:
		a.TechniqueID = itemID
		a.InvalidateEffects()
	default:
		a.Materials[itemID]++
	}

	ev := eventlog.New(env.Month(),
		fmt.Sprintf("%s bought %s for %d spirit stones", a.Name, row.Str("name"), price),
		[]string{a.ID}, false, false)
	return sim.Completed(ev)
}

func (b *BuyItem) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	return nil
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}

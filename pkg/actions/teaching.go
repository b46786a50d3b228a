package actions

import (
	"fmt"
	"log/slog"

	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/gamedata"
	"github.com/cloudrecess/xiansim/pkg/sim"
	"github.com/cloudrecess/xiansim/pkg/world"
)

// epiphanyProb is the per-student chance of adopting the teacher's technique
// during a teaching session.
const epiphanyProb = 0.1

// SectTeaching gathers one sect's members around its strongest cultivator,
// who lectures; every student gains experience, and the occasional epiphany
// passes the teacher's technique on.
type SectTeaching struct {
	sectID int
}

func (st *SectTeaching) Name() string { return "sect_teaching" }

func (st *SectTeaching) MinParticipants() int { return 2 }

func (st *SectTeaching) ShouldStart(env *sim.Env) bool {
	if env.RNG.Float64() >= env.Cfg.Game.Gathering.SectTeachingProb {
		return false
	}
	// Pick a sect that actually has members.
	var populated []int
	for _, s := range env.World.Sects() {
		for _, a := range env.Avatars.Living() {
			if a.SectID == s.ID {
				populated = append(populated, s.ID)
				break
			}
		}
	}
	if len(populated) == 0 {
		return false
	}
	st.sectID = populated[env.RNG.IntN(len(populated))]
	return true
}

func (st *SectTeaching) Candidates(env *sim.Env) []*sim.Avatar {
	var out []*sim.Avatar
	for _, a := range env.Avatars.Living() {
		if a.SectID == st.sectID {
			out = append(out, a)
		}
	}
	return out
}

func (st *SectTeaching) Execute(env *sim.Env, participants []*sim.Avatar) []eventlog.Event {
	teacher := participants[0]
	for _, a := range participants[1:] {
		if a.Realm > teacher.Realm || (a.Realm == teacher.Realm && a.Level > teacher.Level) {
			teacher = a
		}
	}

	sect := env.World.Sect(st.sectID)
	sectName := fmt.Sprintf("sect %d", st.sectID)
	if sect != nil {
		sectName = sect.Name
	}

	events := []eventlog.Event{eventlog.New(env.Month(),
		fmt.Sprintf("%s held a teaching session for %s; %d disciples attended",
			teacher.Name, sectName, len(participants)-1),
		participantIDs(participants), true, false)}

	for _, student := range participants {
		if student == teacher {
			continue
		}
		share := 0.1 + env.RNG.Float64()*0.2
		gained := int(float64(sim.NextLevelExp(student.Realm, student.Level)) * share)
		student.GainExp(gained)
		events = append(events, eventlog.New(env.Month(),
			fmt.Sprintf("%s absorbed %s's lecture and gained %d experience",
				student.Name, teacher.Name, gained),
			[]string{student.ID, teacher.ID}, false, false))

		if teacher.TechniqueID != 0 && teacher.TechniqueID != student.TechniqueID &&
			env.RNG.Float64() < epiphanyProb {
			student.TechniqueID = teacher.TechniqueID
			student.InvalidateEffects()
			technique := "the teacher's technique"
			if row, ok := env.Data.Get(gamedata.TableItems, teacher.TechniqueID); ok {
				technique = row.Str("name")
			}
			events = append(events, eventlog.New(env.Month(),
				fmt.Sprintf("%s had an epiphany during the lecture and grasped %s",
					student.Name, technique),
				[]string{student.ID, teacher.ID}, true, true))
		}
	}

	events = append(events, st.narrate(env, teacher, sectName, participants))
	return events
}

// narrate asks for a short account of the session. A canned line stands in
// when the call fails, so the story beat is never lost.
func (st *SectTeaching) narrate(env *sim.Env, teacher *sim.Avatar, sectName string, participants []*sim.Avatar) eventlog.Event {
	content := fmt.Sprintf("Under %s's guidance, the disciples of %s tempered their foundations",
		teacher.Name, sectName)

	infos := make([]map[string]any, 0, len(participants))
	for _, a := range participants {
		infos = append(infos, a.Info())
	}
	reply, err := env.CallTask("sect_teaching", map[string]any{
		"sect_name":    sectName,
		"teacher_name": teacher.Name,
		"avatar_infos": infos,
		"world_info":   env.WorldInfo(),
		"language":     env.Lang,
	})
	if err != nil {
		slog.Warn("sect teaching narration failed", "sect", sectName, "error", err)
	} else if text, ok := reply["content"].(string); ok && text != "" {
		content = text
	}
	return eventlog.New(env.Month(), content, participantIDs(participants), true, true)
}

// Auction brings the cultivators present in a city together around a single
// rare lot; the wealthiest participant takes it at a premium.
type Auction struct{}

func (au *Auction) Name() string { return "auction" }

func (au *Auction) MinParticipants() int { return 2 }

func (au *Auction) ShouldStart(env *sim.Env) bool {
	return env.RNG.Float64() < env.Cfg.Game.Gathering.AuctionProb
}

func (au *Auction) Candidates(env *sim.Env) []*sim.Avatar {
	var out []*sim.Avatar
	for _, a := range env.Avatars.Living() {
		if r := env.World.RegionAt(a.X, a.Y); r != nil && r.Kind == world.RegionCity {
			out = append(out, a)
		}
	}
	return out
}

func (au *Auction) Execute(env *sim.Env, participants []*sim.Avatar) []eventlog.Event {
	items := env.Data.Rows(gamedata.TableItems)
	if len(items) == 0 {
		return nil
	}
	lot := items[env.RNG.IntN(len(items))]
	price := lot.Int("price")
	price += price / 5 // auction premium

	var winner *sim.Avatar
	for _, a := range participants {
		if a.Currency < price {
			continue
		}
		if winner == nil || a.Currency > winner.Currency {
			winner = a
		}
	}
	if winner == nil {
		return []eventlog.Event{eventlog.New(env.Month(),
			fmt.Sprintf("an auction for %s found no buyer at %d spirit stones",
				lot.Str("name"), price),
			participantIDs(participants), false, false)}
	}

	winner.Currency -= price
	switch lot.Str("type") {
	case ItemTypeWeapon:
		winner.WeaponID = lot.ID
		winner.InvalidateEffects()
	case ItemTypeAuxiliary:
		winner.AuxiliaryID = lot.ID
		winner.InvalidateEffects()
	case ItemTypeTechnique:
		winner.TechniqueID = lot.ID
		winner.InvalidateEffects()
	default:
		winner.Materials[lot.ID]++
	}

	return []eventlog.Event{eventlog.New(env.Month(),
		fmt.Sprintf("%s won %s at auction for %d spirit stones",
			winner.Name, lot.Str("name"), price),
		participantIDs(participants), true, false)}
}

func participantIDs(participants []*sim.Avatar) []string {
	ids := make([]string, 0, len(participants))
	for _, a := range participants {
		ids = append(ids, a.ID)
	}
	return ids
}

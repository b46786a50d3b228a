package sim

import (
	"encoding/json"

	"github.com/cloudrecess/xiansim/pkg/effects"
	"github.com/cloudrecess/xiansim/pkg/gamedata"
)

// InvalidateEffects marks the avatar's merged-effect cache stale. Call after
// changing any modifier source (sect, technique, items, personas, temporary
// effects).
func (a *Avatar) InvalidateEffects() { a.effectsVersion++ }

// AddTempEffect attaches a time-boxed modifier and invalidates the cache.
func (a *Avatar) AddTempEffect(t *TemporaryEffect) {
	a.TempEffects = append(a.TempEffects, t)
	a.InvalidateEffects()
}

// PruneTempEffects drops effects whose window ended before month.
func (a *Avatar) PruneTempEffects(month int) {
	kept := a.TempEffects[:0]
	changed := false
	for _, t := range a.TempEffects {
		if t.StartMonth+t.DurationMonths > month {
			kept = append(kept, t)
		} else {
			changed = true
		}
	}
	a.TempEffects = kept
	if changed {
		a.InvalidateEffects()
	}
}

// Effects returns the merged modifier map from every active source. The
// result is cached per (source version, month); callers must not mutate it.
func (e *Env) Effects(a *Avatar) map[string]any {
	month := e.Month()
	if a.cachedEffects != nil && a.cachedVersion == a.effectsVersion && a.cachedMonth == month {
		return a.cachedEffects
	}

	maps := make([]map[string]any, 0, 8)
	if s := e.World.Sect(a.SectID); s != nil {
		maps = append(maps, s.Effects())
	}
	maps = append(maps,
		e.rowEffect(gamedata.TableItems, a.TechniqueID),
		e.rowEffect(gamedata.TableItems, a.WeaponID),
		e.rowEffect(gamedata.TableItems, a.AuxiliaryID),
		e.rowEffect(gamedata.TableAnimals, a.SpiritAnimalID),
	)
	for _, pid := range a.PersonaIDs {
		maps = append(maps, e.rowEffect(gamedata.TablePersonas, pid))
	}
	for _, t := range a.TempEffects {
		if t.ActiveAt(month) {
			maps = append(maps, t.Effect)
		}
	}

	a.cachedEffects = effects.Merge(maps...)
	a.cachedVersion = a.effectsVersion
	a.cachedMonth = month
	return a.cachedEffects
}

// EffectNumber reads one numeric modifier for a.
func (e *Env) EffectNumber(a *Avatar, key string) float64 {
	return effects.Number(e.Effects(a), key)
}

// rowEffect decodes the "effect" column of a static-table row. The column
// holds a JSON object; empty or missing rows contribute nothing.
func (e *Env) rowEffect(table string, id int) map[string]any {
	if id <= 0 {
		return nil
	}
	row, ok := e.Data.Get(table, id)
	if !ok {
		return nil
	}
	raw := row.Str("effect")
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

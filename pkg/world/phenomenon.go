package world

import "math/rand/v2"

// Phenomenon is the world-wide celestial phenomenon currently in effect.
// At most one is active at a time; the simulator rotates it when expired.
type Phenomenon struct {
	ID            int `json:"id"`
	StartMonth    int `json:"start_month"`
	DurationYears int `json:"duration_years"`
}

// ExpiresAt returns the first month the phenomenon is no longer active.
func (p Phenomenon) ExpiresAt() int {
	return p.StartMonth + p.DurationYears*12
}

// Active reports whether the phenomenon covers the given month.
func (p Phenomenon) Active(month int) bool {
	return month >= p.StartMonth && month < p.ExpiresAt()
}

// PhenomenonChoice is one rarity-weighted candidate for rotation. Weight is
// inverse rarity: commoner phenomena carry larger weights.
type PhenomenonChoice struct {
	ID            int
	Weight        int
	DurationYears int
}

// PickPhenomenon samples one choice by weight. Returns false when the pool is
// empty or has no positive weight.
func PickPhenomenon(rng *rand.Rand, pool []PhenomenonChoice, startMonth int) (Phenomenon, bool) {
	total := 0
	for _, c := range pool {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total == 0 {
		return Phenomenon{}, false
	}
	n := rng.IntN(total)
	for _, c := range pool {
		if c.Weight <= 0 {
			continue
		}
		if n < c.Weight {
			return Phenomenon{
				ID:            c.ID,
				StartMonth:    startMonth,
				DurationYears: c.DurationYears,
			}, true
		}
		n -= c.Weight
	}
	return Phenomenon{}, false
}

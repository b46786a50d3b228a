package sim

// Roster holds every avatar in a deterministic order. Iteration order is
// insertion order so replaying the same seed replays the same simulation.
type Roster struct {
	order []*Avatar
	byID  map[string]*Avatar
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{byID: make(map[string]*Avatar)}
}

// Add registers an avatar. Re-adding an existing ID replaces the entry in
// place without changing its position.
func (r *Roster) Add(a *Avatar) {
	if _, ok := r.byID[a.ID]; ok {
		for i, cur := range r.order {
			if cur.ID == a.ID {
				r.order[i] = a
				break
			}
		}
	} else {
		r.order = append(r.order, a)
	}
	r.byID[a.ID] = a
}

// Get looks an avatar up by ID.
func (r *Roster) Get(id string) (*Avatar, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// All returns every avatar in insertion order (callers must not mutate the
// slice).
func (r *Roster) All() []*Avatar { return r.order }

// Living returns the avatars still alive, in insertion order.
func (r *Roster) Living() []*Avatar {
	out := make([]*Avatar, 0, len(r.order))
	for _, a := range r.order {
		if a.Alive {
			out = append(out, a)
		}
	}
	return out
}

// Len is the total roster size including the dead.
func (r *Roster) Len() int { return len(r.order) }

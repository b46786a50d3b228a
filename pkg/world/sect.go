package world

// Sect is a cultivation sect. Membership is tracked on the avatar side
// (Avatar.SectID); the sect itself only carries static-ish identity and the
// passive effects it grants members.
type Sect struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	RegionID    int            `json:"region_id"`
	Element     string         `json:"element"`
	TechniqueID int            `json:"technique_id"`
	Effect      map[string]any `json:"effect,omitempty"`
}

// Effects implements the effect-source contract used by the effect merger.
func (s *Sect) Effects() map[string]any { return s.Effect }

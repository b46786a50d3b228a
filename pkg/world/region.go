package world

// RegionKind discriminates the four region variants.
type RegionKind string

// Region kinds.
const (
	RegionNormal    RegionKind = "normal"
	RegionCultivate RegionKind = "cultivate"
	RegionCity      RegionKind = "city"
	RegionSect      RegionKind = "sect"
)

// Prosperity bounds for city regions.
const (
	MinProsperity = 0
	MaxProsperity = 100
)

// Region is a named area of the map. Exactly one variant's fields are
// meaningful, selected by Kind; the zero values of the others are ignored.
type Region struct {
	ID   int        `json:"id"`
	Name string     `json:"name"`
	Kind RegionKind `json:"kind"`

	// Normal regions: static table ids of what can be hunted/harvested/mined.
	Huntables    []int `json:"huntables,omitempty"`
	Harvestables []int `json:"harvestables,omitempty"`
	Minables     []int `json:"minables,omitempty"`

	// Cultivate regions. HostID is empty when unclaimed; a non-empty host must
	// reference a living avatar currently located inside the region.
	Element string `json:"element,omitempty"`
	Density int    `json:"density,omitempty"`
	HostID  string `json:"host_id,omitempty"`

	// City regions.
	StoreItems []int `json:"store_items,omitempty"`
	Prosperity int   `json:"prosperity,omitempty"`

	// Sect regions.
	SectID int `json:"sect_id,omitempty"`
}

// AddProsperity shifts a city's prosperity by delta, clamped to [0, 100].
// No-op for non-city regions.
func (r *Region) AddProsperity(delta int) {
	if r.Kind != RegionCity {
		return
	}
	r.Prosperity += delta
	if r.Prosperity > MaxProsperity {
		r.Prosperity = MaxProsperity
	}
	if r.Prosperity < MinProsperity {
		r.Prosperity = MinProsperity
	}
}

// Claim records a cultivate region's host. Returns false if the region is not
// a cultivate region or already hosted by someone else.
func (r *Region) Claim(avatarID string) bool {
	if r.Kind != RegionCultivate {
		return false
	}
	if r.HostID != "" && r.HostID != avatarID {
		return false
	}
	r.HostID = avatarID
	return true
}

// Release clears the host if it matches avatarID.
func (r *Region) Release(avatarID string) {
	if r.HostID == avatarID {
		r.HostID = ""
	}
}

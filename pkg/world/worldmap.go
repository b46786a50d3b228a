package world

// Tile is a single map cell. Type is the terrain id from the static tile
// table; RegionID is -1 for cells that belong to no region.
type Tile struct {
	Type     int `json:"type"`
	RegionID int `json:"region_id"`
}

// Map is a rectangular grid of tiles. Coordinates are (x, y) with origin at
// the top-left corner; x indexes columns, y indexes rows.
type Map struct {
	Width  int
	Height int
	tiles  [][]Tile // tiles[y][x]
}

// NewMap builds a map from row-major tile data. Rows must all have equal
// length; NewMap panics otherwise because the grids come from validated
// static data.
func NewMap(tiles [][]Tile) *Map {
	if len(tiles) == 0 {
		return &Map{}
	}
	w := len(tiles[0])
	for _, row := range tiles {
		if len(row) != w {
			panic("world: ragged tile grid")
		}
	}
	return &Map{Width: w, Height: len(tiles), tiles: tiles}
}

// InBounds reports whether (x, y) lies on the map.
func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && x < m.Width && y >= 0 && y < m.Height
}

// Tile returns the cell at (x, y). Callers must check InBounds first.
func (m *Map) Tile(x, y int) Tile { return m.tiles[y][x] }

// RegionIDAt returns the region id at (x, y), or -1 when out of bounds or on
// an unassigned cell.
func (m *Map) RegionIDAt(x, y int) int {
	if !m.InBounds(x, y) {
		return -1
	}
	return m.tiles[y][x].RegionID
}

// Clamp snaps (x, y) to the nearest in-bounds coordinate.
func (m *Map) Clamp(x, y int) (int, int) {
	if x < 0 {
		x = 0
	}
	if x >= m.Width {
		x = m.Width - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= m.Height {
		y = m.Height - 1
	}
	return x, y
}

package gamedata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// CSVStore loads every *.csv in a directory as a table named after the file.
// The first row is the header; an "id" column is required. Tables load once
// at startup; lookups afterwards are map reads.
type CSVStore struct {
	tables map[string][]Row
	index  map[string]map[int]Row
}

// LoadDir reads all CSV tables under dir. A missing or malformed table is a
// fatal initialization error.
func LoadDir(dir string) (*CSVStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}

	s := &CSVStore{
		tables: make(map[string][]Row),
		index:  make(map[string]map[int]Row),
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		table := strings.TrimSuffix(name, ".csv")
		// The two grid files are not row tables.
		if table == "tile_map" || table == "region_map" {
			continue
		}
		rows, err := loadTable(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		s.tables[table] = rows
		idx := make(map[int]Row, len(rows))
		for _, r := range rows {
			if _, dup := idx[r.ID]; dup {
				return nil, fmt.Errorf("table %s: duplicate id %d", table, r.ID)
			}
			idx[r.ID] = r
		}
		s.index[table] = idx
	}
	return s, nil
}

func loadTable(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty table")
	}

	header := records[0]
	idCol := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "id") {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("missing id column")
	}

	rows := make([]Row, 0, len(records)-1)
	for n, rec := range records[1:] {
		id, err := strconv.Atoi(strings.TrimSpace(rec[idCol]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad id %q", n+2, rec[idCol])
		}
		fields := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				fields[strings.TrimSpace(h)] = rec[i]
			}
		}
		rows = append(rows, Row{ID: id, Fields: fields})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

// Rows returns the table's rows in ascending id order, nil for unknown tables.
func (s *CSVStore) Rows(table string) []Row { return s.tables[table] }

// Get fetches one row by id.
func (s *CSVStore) Get(table string, id int) (Row, bool) {
	r, ok := s.index[table][id]
	return r, ok
}

// LoadGrid parses a comma-separated integer grid (tile_map.csv or
// region_map.csv): one row per line, no header.
func LoadGrid(path string) ([][]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open grid: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid grid CSV: %w", err)
	}

	grid := make([][]int, 0, len(records))
	width := -1
	for n, rec := range records {
		if width < 0 {
			width = len(rec)
		} else if len(rec) != width {
			return nil, fmt.Errorf("row %d: ragged grid (%d != %d)", n+1, len(rec), width)
		}
		row := make([]int, len(rec))
		for i, cell := range rec {
			v, err := strconv.Atoi(strings.TrimSpace(cell))
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: bad cell %q", n+1, i+1, cell)
			}
			row[i] = v
		}
		grid = append(grid, row)
	}
	return grid, nil
}

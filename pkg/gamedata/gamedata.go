// Package gamedata exposes the static design tables (species, items, sects,
// phenomena, names, regions) and the two map grids. The simulator only
// depends on the Store interface; the CSV implementation loads a directory
// of row-oriented tables keyed by an integer id column.
package gamedata

import (
	"strconv"
	"strings"
)

// Row is one record of a static table. Fields are raw strings; the typed
// getters apply the conventions used across the tables (semicolon-separated
// integer lists, etc.).
type Row struct {
	ID     int
	Fields map[string]string
}

// Str returns a string field, "" when absent.
func (r Row) Str(key string) string { return r.Fields[key] }

// Int returns an integer field, 0 when absent or malformed.
func (r Row) Int(key string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(r.Fields[key]))
	return n
}

// Float returns a float field, 0 when absent or malformed.
func (r Row) Float(key string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(r.Fields[key]), 64)
	return f
}

// IntList parses a semicolon-separated id list ("3;7;12"). Empty fields and
// malformed entries are skipped.
func (r Row) IntList(key string) []int {
	raw := strings.TrimSpace(r.Fields[key])
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// Store is the read surface the core requires from static data: list a
// table's rows, and fetch a row by id. Missing ids at runtime return
// (zero Row, false); table loading validates referential integrity up front.
type Store interface {
	Rows(table string) []Row
	Get(table string, id int) (Row, bool)
}

// Well-known table names.
const (
	TablePersonas   = "personas"
	TableAnimals    = "animals"
	TablePlants     = "plants"
	TableLodes      = "lodes"
	TableItems      = "items"
	TablePhenomena  = "celestial_phenomena"
	TableSects      = "sects"
	TableRegions    = "regions"
	TableFirstNames = "first_names"
	TableGivenNames = "given_names"
)

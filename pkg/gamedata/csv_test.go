package gamedata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "animals.csv", "id,name,realm,drops\n2,Moon Hare,0,3;7\n1,Ash Wolf,1,\n")
	writeFile(t, dir, "notes.txt", "ignored")

	s, err := LoadDir(dir)
	require.NoError(t, err)

	rows := s.Rows("animals")
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].ID, "rows sorted by id")

	hare, ok := s.Get("animals", 2)
	require.True(t, ok)
	assert.Equal(t, "Moon Hare", hare.Str("name"))
	assert.Equal(t, 0, hare.Int("realm"))
	assert.Equal(t, []int{3, 7}, hare.IntList("drops"))

	wolf, _ := s.Get("animals", 1)
	assert.Nil(t, wolf.IntList("drops"))

	_, ok = s.Get("animals", 99)
	assert.False(t, ok)
	assert.Nil(t, s.Rows("ghosts"))
}

func TestLoadDirErrors(t *testing.T) {
	t.Run("duplicate id", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "items.csv", "id,name\n1,a\n1,b\n")
		_, err := LoadDir(dir)
		assert.ErrorContains(t, err, "duplicate id")
	})

	t.Run("missing id column", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "items.csv", "name\nfoo\n")
		_, err := LoadDir(dir)
		assert.ErrorContains(t, err, "missing id column")
	})

	t.Run("bad id", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "items.csv", "id,name\nx,foo\n")
		_, err := LoadDir(dir)
		assert.ErrorContains(t, err, "bad id")
	})
}

func TestLoadGrid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "region_map.csv", "1,1,-1\n2,2,2\n")

	grid, err := LoadGrid(filepath.Join(dir, "region_map.csv"))
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 1, -1}, {2, 2, 2}}, grid)

	writeFile(t, dir, "bad.csv", "1,2\n3\n")
	_, err = LoadGrid(filepath.Join(dir, "bad.csv"))
	assert.Error(t, err)
}

func TestRowGetters(t *testing.T) {
	r := Row{ID: 1, Fields: map[string]string{"p": "0.35", "n": " 7 "}}
	assert.InDelta(t, 0.35, r.Float("p"), 1e-9)
	assert.Equal(t, 7, r.Int("n"))
	assert.Zero(t, r.Int("missing"))
}

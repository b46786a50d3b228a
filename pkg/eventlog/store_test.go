package eventlog

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAndQuery(t *testing.T) {
	l := openTestLog(t)

	added, err := l.Append(New(10, "A hunted a moon hare", []string{"a1"}, false, false))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = l.Append(New(11, "A and B dueled at the ridge", []string{"a1", "a2"}, true, false))
	require.NoError(t, err)
	assert.True(t, added)

	evs, err := l.Events(Query{AvatarID: "a1"})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, 11, evs[0].Month, "newest first")

	evs, err = l.Events(Query{AvatarID: "a2"})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, []string{"a1", "a2"}, evs[0].RelatedIDs)

	major := true
	evs, err = l.Events(Query{AvatarID: "a1", Major: &major})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.True(t, evs[0].IsMajor)
}

func TestDuplicateSuppression(t *testing.T) {
	l := openTestLog(t)

	// Same month, content, and related ids in either order: one entry.
	first := New(12, "A spoke with B", []string{"a1", "a2"}, false, false)
	second := New(12, "A spoke with B", []string{"a2", "a1"}, false, false)

	added, err := l.Append(first)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = l.Append(second)
	require.NoError(t, err)
	assert.False(t, added)

	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Different month is a fresh event.
	added, err = l.Append(New(13, "A spoke with B", []string{"a1", "a2"}, false, false))
	require.NoError(t, err)
	assert.True(t, added)
}

func TestCountByAvatar(t *testing.T) {
	l := openTestLog(t)

	for i := 0; i < 3; i++ {
		_, err := l.Append(New(i, fmt.Sprintf("major %d", i), []string{"a1"}, true, false))
		require.NoError(t, err)
	}
	_, err := l.Append(New(5, "minor", []string{"a1"}, false, false))
	require.NoError(t, err)

	n, err := l.CountByAvatar("a1", true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = l.CountByAvatar("a1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = l.CountByAvatar("ghost", true)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueryLimit(t *testing.T) {
	l := openTestLog(t)
	for i := 0; i < 10; i++ {
		_, err := l.Append(New(i, fmt.Sprintf("event %d", i), []string{"a1"}, false, false))
		require.NoError(t, err)
	}
	evs, err := l.Events(Query{AvatarID: "a1", Limit: 4})
	require.NoError(t, err)
	assert.Len(t, evs, 4)
	assert.Equal(t, 9, evs[0].Month)
}

func TestDedupeLRUEviction(t *testing.T) {
	d := newDedupeLRU(2)
	assert.False(t, d.seen("k1"))
	assert.False(t, d.seen("k2"))
	assert.True(t, d.seen("k1"))
	assert.False(t, d.seen("k3")) // evicts k2
	assert.False(t, d.seen("k2"))
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(entries []WordEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Word
	}
	return out
}

func TestTableKeepsInsertionOrder(t *testing.T) {
	tbl := NewTable("ad")
	require.True(t, tbl.Insert("c", DefaultStatus(1)))
	require.True(t, tbl.Insert("a", DefaultStatus(1)))
	require.True(t, tbl.Insert("b", DefaultStatus(2)))
	assert.False(t, tbl.Insert("a", DefaultStatus(3)), "duplicate insert must fail")

	assert.Equal(t, []string{"c", "a", "b"}, words(tbl.Entries()))

	require.True(t, tbl.Delete("a"))
	assert.False(t, tbl.Delete("a"))
	assert.Equal(t, []string{"c", "b"}, words(tbl.Entries()))

	got, ok := tbl.Get("b")
	require.True(t, ok)
	assert.Equal(t, DefaultStatus(2), got)
}

func TestTableTakeAndInsertAt(t *testing.T) {
	tbl := NewTable("ad")
	for _, w := range []string{"a", "b", "c"} {
		tbl.Insert(w, DefaultStatus(1))
	}
	tbl.Hit("b")

	e, pos, ok := tbl.Take("b")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	assert.Equal(t, 1, e.Status.Total)
	assert.Equal(t, []string{"a", "c"}, words(tbl.Entries()))

	tbl.Hit("c")
	require.True(t, tbl.InsertAt(pos, e))
	assert.Equal(t, []string{"a", "b", "c"}, words(tbl.Entries()))
	assert.False(t, tbl.InsertAt(0, e), "word already present")

	got, _ := tbl.Get("b")
	assert.Equal(t, 1, got.Total)
	got, _ = tbl.Get("c")
	assert.Equal(t, 1, got.Total, "index follows the shifted entry")

	_, _, ok = tbl.Take("zz")
	assert.False(t, ok)
	require.True(t, tbl.InsertAt(99, WordEntry{Word: "d", Status: DefaultStatus(1)}))
	assert.Equal(t, []string{"a", "b", "c", "d"}, words(tbl.Entries()))
}

func TestTableHitAndRollover(t *testing.T) {
	tbl := NewTable("ad")
	tbl.Insert("foo", DefaultStatus(1))

	s, ok := tbl.Hit("foo")
	require.True(t, ok)
	assert.Equal(t, WordStatus{Average: 1, Today: 1, Total: 1, Owner: 1}, s)
	assert.True(t, tbl.TakeDirty())
	assert.False(t, tbl.TakeDirty())

	tbl.Hit("foo")
	tbl.Rollover()
	s, _ = tbl.Get("foo")
	assert.Equal(t, WordStatus{Average: 1, Today: 0, Total: 2, Temp: 2, Owner: 1}, s)
	assert.Equal(t, 2, tbl.Periods())

	s, _ = tbl.Hit("foo")
	assert.InDelta(t, 1.5, s.Average, 1e-9)
	assert.GreaterOrEqual(t, s.Total, s.Today)

	_, ok = tbl.Hit("missing")
	assert.False(t, ok)
}

func TestTableResetKeepsKeysAndOwners(t *testing.T) {
	tbl := NewTable("ad")
	tbl.Insert("foo", WordStatus{Average: 3, Today: 2, Total: 9, Temp: 1, Owner: 7})
	tbl.Insert("bar", DefaultStatus(8))

	tbl.Reset()
	once := tbl.Snapshot()
	tbl.Reset()
	assert.Equal(t, once, tbl.Snapshot(), "reset is idempotent")
	assert.Equal(t, []WordEntry{
		{Word: "foo", Status: DefaultStatus(7)},
		{Word: "bar", Status: DefaultStatus(8)},
	}, once.Words)
}

func TestTableSnapshotRestore(t *testing.T) {
	tbl := NewTable("ad")
	tbl.Insert("foo", DefaultStatus(1))
	tbl.Insert("bar", DefaultStatus(2))
	snap := tbl.Snapshot()

	tbl.Delete("foo")
	tbl.Insert("baz", DefaultStatus(3))
	tbl.Restore(snap)

	assert.Equal(t, snap, tbl.Snapshot())
	_, ok := tbl.Get("baz")
	assert.False(t, ok)

	t.Run("restore sanitises input", func(t *testing.T) {
		other := NewTable("bio")
		other.Restore(TableSnapshot{Words: []WordEntry{{Word: "x"}, {Word: "x"}, {Word: ""}}})
		assert.Equal(t, 1, other.Len())
		assert.Equal(t, 1, other.Periods())
	})
}

func TestEmptySnapshotHasNoNilWords(t *testing.T) {
	assert.NotNil(t, NewTable("ad").Snapshot().Words)
}

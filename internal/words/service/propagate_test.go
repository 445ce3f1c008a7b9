package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordhub/internal/taxonomy"
	"wordhub/internal/words/store"
	dErrors "wordhub/pkg/domain-errors"
)

func newRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	tx := taxonomy.MustNew("ad", "ad+", "ad-", "bio", "bio+", "nm", "nmx")
	r, err := New(tx, store.NewInMemory(), append([]Option{WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	return r
}

func TestPropagateAbortsOnAmbiguousSiblings(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	res := r.Propagate(ctx, OpAdd, "ad", "foo", 1)
	assert.True(t, res.Aborted)
	assert.Empty(t, res.Applied)
	for _, sib := range []taxonomy.WordType{"ad+", "ad-"} {
		_, err := r.Get(ctx, sib, "foo")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "%s must stay untouched", sib)
	}
}

func TestPropagateAddsToNeutralSiblings(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	res := r.Propagate(ctx, OpAdd, "bio+", "spam", 4)
	assert.False(t, res.Aborted)
	assert.Equal(t, []taxonomy.WordType{"bio"}, res.Applied)
	assert.Empty(t, res.Failed)

	owner, err := r.Owner(ctx, "bio", "spam")
	require.NoError(t, err)
	assert.EqualValues(t, 4, owner)
}

func TestPropagateIsBestEffort(t *testing.T) {
	r := newRegistry(t, WithRelation(taxonomy.GroupRelation([][]taxonomy.WordType{{"nm", "nmx", "bio"}})))
	ctx := context.Background()

	_, err := r.Add(ctx, "nmx", "foo", 7)
	require.NoError(t, err)

	res := r.Propagate(ctx, OpAdd, "nm", "foo", 1)
	assert.Equal(t, []taxonomy.WordType{"bio"}, res.Applied)
	require.Contains(t, res.Failed, taxonomy.WordType("nmx"))
	assert.True(t, dErrors.HasCode(res.Failed["nmx"], dErrors.CodeConflict))

	owner, err := r.Owner(ctx, "nmx", "foo")
	require.NoError(t, err)
	assert.EqualValues(t, 7, owner, "failed sibling keeps its entry")
}

func TestPropagateRemove(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	_, _ = r.Add(ctx, "bio", "foo", 1)

	res := r.Propagate(ctx, OpRemove, "bio+", "foo", 0)
	assert.Equal(t, []taxonomy.WordType{"bio"}, res.Applied)

	res = r.Propagate(ctx, OpRemove, "bio+", "foo", 0)
	assert.True(t, dErrors.HasCode(res.Failed["bio"], dErrors.CodeNotFound))
}

func TestPropagateToExplicitTargets(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	res := r.PropagateTo(ctx, OpAdd, "foo", 3, []taxonomy.WordType{"ad+", "nm"})
	assert.ElementsMatch(t, []taxonomy.WordType{"ad+", "nm"}, res.Applied)
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp("add")
	require.NoError(t, err)
	assert.Equal(t, OpAdd, op)

	_, err = ParseOp("reset")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

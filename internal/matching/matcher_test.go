package matching

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordhub/internal/taxonomy"
	"wordhub/internal/words/service"
	"wordhub/internal/words/store"
	dErrors "wordhub/pkg/domain-errors"
)

func newMatcher(t *testing.T) (*Matcher, *service.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	compiler, err := NewCompiler(16, 50*time.Millisecond)
	require.NoError(t, err)
	registry, err := service.New(taxonomy.MustNew("ad", "nm", "fil"), store.NewInMemory(),
		service.WithLogger(logger), service.WithValidator(compiler.Validate))
	require.NoError(t, err)
	m, err := New(registry, compiler, WithLogger(logger))
	require.NoError(t, err)
	return m, registry
}

func TestMatcherTest(t *testing.T) {
	m, registry := newMatcher(t)
	ctx := context.Background()
	_, err := registry.Add(ctx, "ad", "foo", 1)
	require.NoError(t, err)

	t.Run("first match bumps counters", func(t *testing.T) {
		match, err := m.Test(ctx, "ad", "buy cheap foo now")
		require.NoError(t, err)
		assert.True(t, match.Found)
		assert.Equal(t, "foo", match.Word)
		assert.Equal(t, 1, match.Status.Today)
		assert.Equal(t, 1, match.Status.Total)
		assert.InDelta(t, 1.0, match.Status.Average, 1e-9)

		status, err := registry.Get(ctx, "ad", "foo")
		require.NoError(t, err)
		assert.Equal(t, 1, status.Total)
	})

	t.Run("no match leaves counters alone", func(t *testing.T) {
		match, err := m.Test(ctx, "ad", "hello world")
		require.NoError(t, err)
		assert.False(t, match.Found)

		status, _ := registry.Get(ctx, "ad", "foo")
		assert.Equal(t, 1, status.Total)
	})

	t.Run("matching is case insensitive", func(t *testing.T) {
		match, err := m.Test(ctx, "ad", "FOO")
		require.NoError(t, err)
		assert.True(t, match.Found)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := m.Test(ctx, "zz", "foo")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func TestMatcherRegistryOrder(t *testing.T) {
	m, registry := newMatcher(t)
	ctx := context.Background()
	_, err := registry.Add(ctx, "ad", "b.r", 1)
	require.NoError(t, err)
	_, err = registry.Add(ctx, "ad", "bar", 2)
	require.NoError(t, err)

	match, err := m.Test(ctx, "ad", "a bar")
	require.NoError(t, err)
	assert.Equal(t, "b.r", match.Word)

	status, err := registry.Get(ctx, "ad", "bar")
	require.NoError(t, err)
	assert.Zero(t, status.Total)
}

func TestMatcherChannels(t *testing.T) {
	m, registry := newMatcher(t)
	ctx := context.Background()
	_, err := registry.Add(ctx, "nm", "^spam bot$", 1)
	require.NoError(t, err)
	_, err = registry.Add(ctx, "fil", `\.apk$`, 1)
	require.NoError(t, err)

	match, err := m.TestName(ctx, "nm", "  spam \t bot ")
	require.NoError(t, err)
	assert.True(t, match.Found)
	assert.Equal(t, ChannelName, match.Channel)

	match, err = m.TestFilename(ctx, "fil", "free.apk")
	require.NoError(t, err)
	assert.True(t, match.Found)

	hits, err := m.Scan(ctx, nil, Sample{Name: "spam bot", Filename: "a.apk", Text: "hello"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, taxonomy.WordType("nm"), hits[0].Type)
	assert.Equal(t, taxonomy.WordType("fil"), hits[1].Type)
}

func TestMatcherSurvivesCatastrophicPattern(t *testing.T) {
	m, registry := newMatcher(t)
	ctx := context.Background()
	_, err := registry.Add(ctx, "ad", "(a+)+$", 1)
	require.NoError(t, err)
	_, err = registry.Add(ctx, "ad", "zz", 1)
	require.NoError(t, err)

	text := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa!zz"
	match, err := m.Test(ctx, "ad", text)
	require.NoError(t, err)
	assert.Equal(t, "zz", match.Word)
}

func TestRegistryRejectsInvalidPattern(t *testing.T) {
	_, registry := newMatcher(t)
	_, err := registry.Add(context.Background(), "ad", "(unclosed", 1)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persisterContract exercises the behaviour every Persister must share.
func persisterContract(t *testing.T, p Persister) {
	t.Helper()
	ctx := context.Background()

	got, err := p.Load(ctx, []string{"ad_words"})
	require.NoError(t, err)
	assert.Empty(t, got, "missing tables are not an error")

	require.NoError(t, p.Save(ctx, "ad_words", []byte(`{"periods":1,"words":[]}`)))
	require.NoError(t, p.Save(ctx, "comments", []byte(`{"ad":"ads"}`)))
	require.NoError(t, p.Save(ctx, "ad_words", []byte(`{"periods":2,"words":[]}`)))

	got, err = p.Load(ctx, []string{"ad_words", "comments", "bio_words"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"periods":2,"words":[]}`, string(got["ad_words"]))
	assert.JSONEq(t, `{"ad":"ads"}`, string(got["comments"]))
}

func TestInMemoryStore(t *testing.T) {
	persisterContract(t, NewInMemory())
}

func TestInMemoryStoreCopiesBlobs(t *testing.T) {
	s := NewInMemory()
	blob := []byte("abc")
	require.NoError(t, s.Save(context.Background(), "x", blob))
	blob[0] = 'z'

	got, err := s.Load(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got["x"]))
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir)
	require.NoError(t, err)
	persisterContract(t, s)

	t.Run("no temporary files are left behind", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.Equal(t, ".json", filepath.Ext(e.Name()), e.Name())
		}
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		assert.Error(t, s.Save(context.Background(), "../evil", []byte("x")))
		_, err := s.Load(context.Background(), []string{"a/b"})
		assert.Error(t, err)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, s.Save(ctx, "ad_words", []byte("{}")), context.Canceled)
	})
}

package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, "snap.json", []byte(`{"a":1}`)))
		data, err := store.Get(ctx, "snap.json")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(data))
	})

	t.Run("put replaces existing content", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, "snap.json", []byte("first version, longer")))
		require.NoError(t, store.Put(ctx, "snap.json", []byte("second")))

		data, err := store.Get(ctx, "snap.json")
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileStore(dir)
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, "snap.json", []byte("x")))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "snap.json", entries[0].Name())
	})

	t.Run("missing key", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Get(ctx, "absent.json")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("creates nested directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		_, err := NewFileStore(dir)
		require.NoError(t, err)
		assert.DirExists(t, dir)
	})
}

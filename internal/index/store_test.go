package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/supportiq/internal/domain"
)

// memBlobStore is an in-memory BlobStore
type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte)}
}

func (m *memBlobStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, fs.ErrNotExist)
	}
	return data, nil
}

func TestCodec(t *testing.T) {
	snap := buildTestSnapshot(t)

	t.Run("round trip keeps texts and vectors aligned", func(t *testing.T) {
		data, err := Encode(snap)
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, snap.Texts(), decoded.Texts())
		assert.Equal(t, snap.Dimension(), decoded.Dimension())
		for i := 0; i < snap.Len(); i++ {
			assert.Equal(t, snap.Chunk(i), decoded.Chunk(i))
		}
	})

	t.Run("round trip keeps the embedding model", func(t *testing.T) {
		data, err := Encode(snap.WithModel("text-embedding-3-small"))
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, "text-embedding-3-small", decoded.Model())
		assert.Empty(t, snap.Model(), "WithModel leaves the original untouched")
	})

	t.Run("empty snapshot cannot be encoded", func(t *testing.T) {
		_, err := Encode(nil)
		assert.Error(t, err)
	})

	corrupt := func(t *testing.T, mutate func(env *snapshotEnvelope)) []byte {
		t.Helper()
		data, err := Encode(snap)
		require.NoError(t, err)
		var env snapshotEnvelope
		require.NoError(t, json.Unmarshal(data, &env))
		mutate(&env)
		out, err := json.Marshal(env)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{"truncated", func(t *testing.T) []byte {
			data, err := Encode(snap)
			require.NoError(t, err)
			return data[:len(data)/2]
		}},
		{"text without vector", func(t *testing.T) []byte {
			return corrupt(t, func(env *snapshotEnvelope) { env.Texts = append(env.Texts, "extra") })
		}},
		{"vector tampered", func(t *testing.T) []byte {
			return corrupt(t, func(env *snapshotEnvelope) { env.Vectors[0] = 42 })
		}},
		{"text tampered", func(t *testing.T) []byte {
			return corrupt(t, func(env *snapshotEnvelope) { env.Texts[1] = "west" })
		}},
		{"unknown version", func(t *testing.T) []byte {
			return corrupt(t, func(env *snapshotEnvelope) { env.Version = 99 })
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data(t))
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}

func TestBlobSnapshotStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save then load", func(t *testing.T) {
		store := NewBlobSnapshotStore(newMemBlobStore(), "")
		snap := buildTestSnapshot(t)

		require.NoError(t, store.Save(ctx, snap))
		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap.Texts(), loaded.Texts())
	})

	t.Run("missing snapshot", func(t *testing.T) {
		store := NewBlobSnapshotStore(newMemBlobStore(), "")
		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("corrupt snapshot reads as not found", func(t *testing.T) {
		blobs := newMemBlobStore()
		blobs.objects[DefaultSnapshotKey] = []byte(`{"version":1,"dimension":2,"texts":["a"],"vectors":[0]}`)

		_, err := NewBlobSnapshotStore(blobs, "").Load(ctx)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	})

	t.Run("write failure surfaces", func(t *testing.T) {
		blobs := newMemBlobStore()
		blobs.putErr = errors.New("disk full")

		err := NewBlobSnapshotStore(blobs, "custom.json").Save(ctx, buildTestSnapshot(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "custom.json")
		assert.Contains(t, err.Error(), "disk full")
	})
}

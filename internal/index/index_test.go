package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/supportiq/internal/domain"
)

// MockEmbedder is a mock implementation of Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// mapEmbedder returns fixed vectors keyed by text
type mapEmbedder map[string][]float32

func (e mapEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec, ok := e[text]
	if !ok {
		return nil, fmt.Errorf("no embedding for %q", text)
	}
	return vec, nil
}

func testCorpus() ([]string, mapEmbedder) {
	texts := []string{"origin", "east", "far north", "also east"}
	emb := mapEmbedder{
		"origin":    {0, 0},
		"east":      {1, 0},
		"far north": {0, 2},
		"also east": {1, 0},
		"query":     {0, 0},
	}
	return texts, emb
}

func buildTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	texts, emb := testCorpus()
	snap, err := Build(context.Background(), emb, texts)
	require.NoError(t, err)
	return snap
}

func TestBuild(t *testing.T) {
	t.Run("builds parallel chunks and vectors", func(t *testing.T) {
		snap := buildTestSnapshot(t)

		assert.Equal(t, 4, snap.Len())
		assert.Equal(t, 2, snap.Dimension())
		assert.Equal(t, []string{"origin", "east", "far north", "also east"}, snap.Texts())
		for i := 0; i < snap.Len(); i++ {
			assert.Equal(t, i, snap.Chunk(i).SourceIndex)
		}
		assert.Equal(t, []float32{0, 2}, snap.Chunk(2).Embedding)
	})

	t.Run("records the model of a describing embedder", func(t *testing.T) {
		texts, emb := testCorpus()
		snap, err := Build(context.Background(), describedEmbedder{mapEmbedder: emb, model: "m-2", dim: 2}, texts)
		require.NoError(t, err)
		assert.Equal(t, "m-2", snap.Model())
	})

	t.Run("empty corpus", func(t *testing.T) {
		_, err := Build(context.Background(), mapEmbedder{}, nil)
		assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
	})

	t.Run("inconsistent dimensions", func(t *testing.T) {
		emb := mapEmbedder{"a": {1, 2}, "b": {1, 2, 3}}
		_, err := Build(context.Background(), emb, []string{"a", "b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension")
	})

	t.Run("embedder failure", func(t *testing.T) {
		mockEmb := new(MockEmbedder)
		mockEmb.On("GenerateEmbedding", mock.Anything, "a").Return(nil, errors.New("provider down"))

		_, err := Build(context.Background(), mockEmb, []string{"a", "b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider down")
		mockEmb.AssertNumberOfCalls(t, "GenerateEmbedding", 1)
	})
}

func TestSnapshot_Search(t *testing.T) {
	snap := buildTestSnapshot(t)
	query := []float32{0, 0}

	t.Run("orders by distance then corpus position", func(t *testing.T) {
		result, err := snap.Search(query, 3, 1.2)
		require.NoError(t, err)

		assert.Equal(t, []string{"origin", "east", "also east"}, result.Texts())
		assert.Equal(t, []float32{0, 1, 1}, []float32{result[0].Distance, result[1].Distance, result[2].Distance})
	})

	t.Run("threshold excludes distant chunks", func(t *testing.T) {
		result, err := snap.Search(query, 10, 1.2)
		require.NoError(t, err)
		assert.Len(t, result, 3)
		for _, hit := range result {
			assert.LessOrEqual(t, hit.Distance, float32(1.2))
		}
	})

	t.Run("distance equal to threshold is kept", func(t *testing.T) {
		result, err := snap.Search(query, 10, 4)
		require.NoError(t, err)
		assert.Equal(t, []string{"origin", "east", "also east", "far north"}, result.Texts())
	})

	t.Run("k truncates after ordering", func(t *testing.T) {
		result, err := snap.Search(query, 2, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"origin", "east"}, result.Texts())
	})

	t.Run("fewer matches than k", func(t *testing.T) {
		result, err := snap.Search(query, 3, 0.5)
		require.NoError(t, err)
		assert.Equal(t, []string{"origin"}, result.Texts())
	})

	t.Run("nothing under threshold is not an error", func(t *testing.T) {
		result, err := snap.Search([]float32{10, 10}, 3, 1.2)
		require.NoError(t, err)
		assert.Empty(t, result)
	})

	t.Run("NaN threshold matches nothing", func(t *testing.T) {
		result, err := snap.Search(query, 3, float32(math.NaN()))
		require.NoError(t, err)
		assert.Empty(t, result)
	})

	t.Run("non-positive k", func(t *testing.T) {
		result, err := snap.Search(query, 0, 10)
		require.NoError(t, err)
		assert.NotNil(t, result)
		assert.Empty(t, result)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := snap.Search([]float32{0, 0, 0}, 3, 10)
		assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
	})

	t.Run("nil snapshot", func(t *testing.T) {
		var nilSnap *Snapshot
		_, err := nilSnap.Search(query, 3, 10)
		assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
	})
}

func TestQuery(t *testing.T) {
	snap := buildTestSnapshot(t)
	_, emb := testCorpus()

	t.Run("embeds and searches", func(t *testing.T) {
		result, err := Query(context.Background(), emb, snap, "query", 3, 1.2)
		require.NoError(t, err)
		assert.Equal(t, "origin", result[0].Chunk.Text)
	})

	t.Run("nil snapshot", func(t *testing.T) {
		_, err := Query(context.Background(), emb, nil, "query", 3, 1.2)
		assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
	})

	t.Run("embedder failure", func(t *testing.T) {
		mockEmb := new(MockEmbedder)
		mockEmb.On("GenerateEmbedding", mock.Anything, "query").Return(nil, errors.New("timeout"))

		_, err := Query(context.Background(), mockEmb, snap, "query", 3, 1.2)
		assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
		assert.Contains(t, err.Error(), "timeout")
		mockEmb.AssertExpectations(t)
	})
}

func TestIndex(t *testing.T) {
	_, emb := testCorpus()

	t.Run("unpublished index is unavailable", func(t *testing.T) {
		idx := New(emb)
		assert.False(t, idx.Ready())

		_, err := idx.Query(context.Background(), "query", 3, 1.2)
		assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
	})

	t.Run("publish swaps and returns previous", func(t *testing.T) {
		idx := New(emb)
		first := buildTestSnapshot(t)
		second := buildTestSnapshot(t)

		assert.Nil(t, idx.Publish(first))
		assert.True(t, idx.Ready())
		assert.Same(t, first, idx.Publish(second))
		assert.Same(t, second, idx.Snapshot())
	})

	t.Run("queries see a whole snapshot during concurrent publishes", func(t *testing.T) {
		small, err := NewSnapshot([]string{"only"}, [][]float32{{0, 0}})
		require.NoError(t, err)
		large := buildTestSnapshot(t)

		idx := New(emb)
		idx.Publish(small)

		var wg sync.WaitGroup
		stop := make(chan struct{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if i%2 == 0 {
					idx.Publish(large)
				} else {
					idx.Publish(small)
				}
			}
			close(stop)
		}()

		errs := make(chan error, 4)
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					result, err := idx.Query(context.Background(), "query", 3, 10)
					if err != nil {
						errs <- err
						return
					}
					texts := result.Texts()
					if len(texts) != 1 && len(texts) != 3 {
						errs <- fmt.Errorf("mixed snapshot result: %v", texts)
						return
					}
				}
			}()
		}

		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})
}

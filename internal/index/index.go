// Package index provides the in-process semantic retrieval index: immutable
// snapshots of embedded corpus chunks with exact squared-L2 nearest-neighbour
// search, published to readers through a single atomic pointer swap.
package index

import (
	"container/heap"
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cloo-solutions/supportiq/internal/domain"
)

// Embedder turns text into a fixed-length vector. Identical input must yield
// identical output and every vector from one embedder has the same length.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingDescriber is implemented by embedders that know their model and
// vector length without making a call.
type EmbeddingDescriber interface {
	EmbeddingModel() string
	EmbeddingDimensions() int
}

// Snapshot is an immutable set of chunks plus a flat row-major matrix of their
// vectors. Row i belongs to chunks[i] and chunks[i].SourceIndex == i.
type Snapshot struct {
	chunks    []domain.KnowledgeChunk
	vectors   []float32
	dimension int
	model     string // embedding model, empty when unknown
}

// NewSnapshot builds a snapshot from already-embedded texts. texts and vectors
// are parallel; every vector must have the same non-zero length.
func NewSnapshot(texts []string, vectors [][]float32) (*Snapshot, error) {
	if len(texts) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	if len(texts) != len(vectors) {
		return nil, fmt.Errorf("snapshot has %d texts but %d vectors", len(texts), len(vectors))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("snapshot vectors must not be empty")
	}

	s := &Snapshot{
		chunks:    make([]domain.KnowledgeChunk, len(texts)),
		vectors:   make([]float32, 0, len(texts)*dim),
		dimension: dim,
	}
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vec), dim)
		}
		start := len(s.vectors)
		s.vectors = append(s.vectors, vec...)
		s.chunks[i] = domain.KnowledgeChunk{
			Text:        texts[i],
			Embedding:   s.vectors[start : start+dim : start+dim],
			SourceIndex: i,
		}
	}

	return s, nil
}

// Build embeds every corpus entry in order and returns a new snapshot.
func Build(ctx context.Context, embedder Embedder, corpus []string) (*Snapshot, error) {
	if len(corpus) == 0 {
		return nil, domain.ErrEmptyCorpus
	}

	vectors := make([][]float32, 0, len(corpus))
	for i, text := range corpus {
		vec, err := embedder.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed corpus entry %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}

	s, err := NewSnapshot(corpus, vectors)
	if err != nil {
		return nil, err
	}
	if d, ok := embedder.(EmbeddingDescriber); ok {
		s.model = d.EmbeddingModel()
	}
	return s, nil
}

// Len returns the number of chunks
func (s *Snapshot) Len() int {
	return len(s.chunks)
}

// Dimension returns the vector length shared by every chunk
func (s *Snapshot) Dimension() int {
	return s.dimension
}

// Model returns the embedding model the vectors came from, or "" if unknown
func (s *Snapshot) Model() string {
	return s.model
}

// WithModel returns a copy of s tagged with model. Chunk data is shared.
func (s *Snapshot) WithModel(model string) *Snapshot {
	c := *s
	c.model = model
	return &c
}

// Chunk returns the chunk at position i. The embedding must not be modified.
func (s *Snapshot) Chunk(i int) domain.KnowledgeChunk {
	return s.chunks[i]
}

// Texts returns a copy of the chunk texts in corpus order
func (s *Snapshot) Texts() []string {
	texts := make([]string, len(s.chunks))
	for i, c := range s.chunks {
		texts[i] = c.Text
	}
	return texts
}

// Search returns up to k chunks whose squared Euclidean distance to vec is at
// most threshold, closest first, ties broken by corpus position.
func (s *Snapshot) Search(vec []float32, k int, threshold float32) (domain.RetrievalResult, error) {
	if s == nil {
		return nil, domain.ErrRetrievalUnavailable
	}
	if len(vec) != s.dimension {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeRetrievalUnavailable, domain.ErrRetrievalUnavailable.Message,
			fmt.Errorf("query dimension %d does not match index dimension %d", len(vec), s.dimension))
	}
	if k <= 0 {
		return domain.RetrievalResult{}, nil
	}

	h := &hitHeap{}
	for i := range s.chunks {
		d := squaredL2(vec, s.vectors[i*s.dimension:(i+1)*s.dimension])
		if !(d <= threshold) {
			continue
		}
		hit := domain.RetrievalHit{Chunk: s.chunks[i], Distance: d}
		if h.Len() < k {
			heap.Push(h, hit)
		} else if closer(hit, (*h)[0]) {
			(*h)[0] = hit
			heap.Fix(h, 0)
		}
	}

	result := make(domain.RetrievalResult, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(domain.RetrievalHit)
	}
	return result, nil
}

// Query embeds text and searches snap. A nil snapshot is reported as
// ErrRetrievalUnavailable rather than an empty result.
func Query(ctx context.Context, embedder Embedder, snap *Snapshot, text string, k int, threshold float32) (domain.RetrievalResult, error) {
	if snap == nil {
		return nil, domain.ErrRetrievalUnavailable
	}

	vec, err := embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeRetrievalUnavailable, domain.ErrRetrievalUnavailable.Message,
			fmt.Errorf("failed to embed query: %w", err))
	}

	return snap.Search(vec, k, threshold)
}

// Index holds the currently published snapshot. Readers load the pointer once
// per query, so a concurrent Publish never exposes a half-built index.
type Index struct {
	embedder Embedder
	current  atomic.Pointer[Snapshot]
}

// New creates an Index with no published snapshot
func New(embedder Embedder) *Index {
	return &Index{embedder: embedder}
}

// Publish atomically replaces the served snapshot and returns the previous one
func (i *Index) Publish(s *Snapshot) *Snapshot {
	return i.current.Swap(s)
}

// Snapshot returns the currently published snapshot, or nil
func (i *Index) Snapshot() *Snapshot {
	return i.current.Load()
}

// Ready reports whether a snapshot has been published
func (i *Index) Ready() bool {
	return i.current.Load() != nil
}

// Query runs a nearest-neighbour query against the published snapshot
func (i *Index) Query(ctx context.Context, text string, k int, threshold float32) (domain.RetrievalResult, error) {
	return Query(ctx, i.embedder, i.current.Load(), text, k, threshold)
}

func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// closer orders hits by distance, then by corpus position.
func closer(a, b domain.RetrievalHit) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Chunk.SourceIndex < b.Chunk.SourceIndex
}

// hitHeap keeps the k best hits with the worst one at the root.
type hitHeap []domain.RetrievalHit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(domain.RetrievalHit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

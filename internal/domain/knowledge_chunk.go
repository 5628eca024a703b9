package domain

// KnowledgeChunk is one embedded entry of the reference corpus.
// SourceIndex is the entry's position in the corpus it was built from.
type KnowledgeChunk struct {
	Text        string
	Embedding   []float32
	SourceIndex int
}

// RetrievalHit pairs a chunk with its distance to the query (lower is closer).
type RetrievalHit struct {
	Chunk    KnowledgeChunk
	Distance float32
}

// RetrievalResult is ordered by ascending distance, ties by SourceIndex.
type RetrievalResult []RetrievalHit

// Texts returns the chunk texts in result order
func (r RetrievalResult) Texts() []string {
	texts := make([]string, 0, len(r))
	for _, hit := range r {
		texts = append(texts, hit.Chunk.Text)
	}
	return texts
}

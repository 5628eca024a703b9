package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/cloo-solutions/supportiq/internal/index"
)

// SnapshotSource exposes the snapshot currently serving queries
type SnapshotSource interface {
	Snapshot() *index.Snapshot
}

// Rebuilder rebuilds and publishes the index
type Rebuilder interface {
	Rebuild(ctx context.Context) error
	Compatible(ctx context.Context, snap *index.Snapshot) error
}

// IndexRefresher rebuilds the knowledge index when the corpus no longer
// matches the published snapshot, or when the snapshot no longer matches the
// embedder.
type IndexRefresher struct {
	corpus    index.CorpusSource
	current   SnapshotSource
	rebuilder Rebuilder
}

// NewIndexRefresher creates a refresher for one index
func NewIndexRefresher(corpus index.CorpusSource, current SnapshotSource, rebuilder Rebuilder) *IndexRefresher {
	return &IndexRefresher{
		corpus:    corpus,
		current:   current,
		rebuilder: rebuilder,
	}
}

// Process compares the corpus with the published snapshot and rebuilds on change
func (r *IndexRefresher) Process(ctx context.Context) error {
	texts, err := r.corpus.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	if snap := r.current.Snapshot(); snap != nil && slices.Equal(snap.Texts(), texts) {
		err := r.rebuilder.Compatible(ctx, snap)
		if err == nil {
			return nil
		}
		if !errors.Is(err, index.ErrIncompatibleSnapshot) {
			return fmt.Errorf("failed to check snapshot: %w", err)
		}
		log.Printf("index refresh: %v, rebuilding", err)
	} else {
		log.Printf("index refresh: corpus changed (%d entries), rebuilding", len(texts))
	}

	if err := r.rebuilder.Rebuild(ctx); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	return nil
}

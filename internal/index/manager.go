package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/cloo-solutions/supportiq/internal/telemetry"
)

// ErrIncompatibleSnapshot marks a snapshot built with a different embedding
// model or vector length than the current embedder produces.
var ErrIncompatibleSnapshot = errors.New("snapshot does not match the current embedder")

// Manager builds, persists and publishes snapshots for an Index
type Manager struct {
	index    *Index
	embedder Embedder
	corpus   CorpusSource
	store    SnapshotStore // may be nil

	mu sync.Mutex

	checkMu  sync.Mutex
	verified *Snapshot // last snapshot that passed Compatible
}

// NewManager creates a Manager. store may be nil, in which case snapshots are
// never persisted and every start rebuilds from the corpus.
func NewManager(idx *Index, embedder Embedder, corpus CorpusSource, store SnapshotStore) *Manager {
	return &Manager{
		index:    idx,
		embedder: embedder,
		corpus:   corpus,
		store:    store,
	}
}

// Index returns the managed index
func (m *Manager) Index() *Index {
	return m.index
}

// LoadOrBuild publishes the stored snapshot if one is usable, otherwise it
// rebuilds from the corpus.
func (m *Manager) LoadOrBuild(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "IndexManager.LoadOrBuild", telemetry.SpanAttributes{
		Operation: "load_or_build",
	})
	defer span.End()

	if m.store != nil {
		snap, err := m.store.Load(ctx)
		if err == nil {
			err = m.Compatible(ctx, snap)
			if err == nil {
				m.index.Publish(snap)
				log.Printf("index: loaded snapshot with %d chunks (dim %d)", snap.Len(), snap.Dimension())
				return nil
			}
			if errors.Is(err, ErrIncompatibleSnapshot) {
				telemetry.CaptureWarning(ctx, "index snapshot was built with a different embedder, rebuilding from corpus")
				err = fmt.Errorf("%w: %w", domain.ErrSnapshotNotFound, err)
			}
		}
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			span.SetError(err)
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		if errors.Is(err, ErrCorruptSnapshot) {
			telemetry.CaptureWarning(ctx, "index snapshot is corrupt, rebuilding from corpus")
		}
		log.Printf("index: no usable snapshot (%v), rebuilding", err)
	}

	if err := m.Rebuild(ctx); err != nil {
		span.SetError(err)
		return err
	}
	return nil
}

// Compatible reports whether snap can serve queries embedded by the current
// embedder. The vector length must match, and so must the model when both
// sides name one. Embedders that cannot describe themselves are measured by
// embedding the snapshot's first chunk.
func (m *Manager) Compatible(ctx context.Context, snap *Snapshot) error {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	if snap == m.verified {
		return nil
	}

	var model string
	dim := 0
	if d, ok := m.embedder.(EmbeddingDescriber); ok {
		model = d.EmbeddingModel()
		dim = d.EmbeddingDimensions()
	}
	if dim <= 0 && snap.Len() > 0 {
		vec, err := m.embedder.GenerateEmbedding(ctx, snap.Chunk(0).Text)
		if err != nil {
			return fmt.Errorf("failed to measure embedding dimension: %w", err)
		}
		dim = len(vec)
	}

	if dim != snap.Dimension() {
		return fmt.Errorf("%w: dimension %d, embedder produces %d", ErrIncompatibleSnapshot, snap.Dimension(), dim)
	}
	if model != "" && snap.Model() != "" && model != snap.Model() {
		return fmt.Errorf("%w: model %q, embedder uses %q", ErrIncompatibleSnapshot, snap.Model(), model)
	}

	m.verified = snap
	return nil
}

// Rebuild embeds the current corpus, saves the result and publishes it. The
// previous snapshot keeps serving queries until the swap, and a failed build
// publishes nothing. A failed save also leaves the previous snapshot live; with
// nothing published yet the new build is served unsaved.
func (m *Manager) Rebuild(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "IndexManager.Rebuild", telemetry.SpanAttributes{
		Operation: "rebuild",
	})
	defer span.End()

	start := time.Now()

	texts, err := m.corpus.Load(ctx)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	snap, err := Build(ctx, m.embedder, texts)
	if err != nil {
		span.SetError(err)
		return err
	}

	if m.store != nil {
		if err := m.store.Save(ctx, snap); err != nil {
			span.SetError(err)
			if m.index.Snapshot() != nil {
				return fmt.Errorf("failed to save snapshot: %w", err)
			}
			log.Printf("index: failed to save snapshot, serving it unsaved: %v", err)
		}
	}

	m.index.Publish(snap)
	log.Printf("index: published snapshot with %d chunks in %s", snap.Len(), time.Since(start).Round(time.Millisecond))
	return nil
}

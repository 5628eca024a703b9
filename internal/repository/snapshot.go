package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/cloo-solutions/supportiq/internal/index"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// SnapshotRepository stores index snapshots as rows with pgvector embeddings.
// Each Save writes a complete snapshot in one transaction and drops older
// ones, so Load only ever sees whole snapshots.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

func (r *SnapshotRepository) Save(ctx context.Context, s *index.Snapshot) error {
	if s == nil || s.Len() == 0 {
		return domain.ErrEmptyCorpus
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var snapshotID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO index_snapshots (dimension, embedding_model, chunk_count, checksum, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.Dimension(), s.Model(), s.Len(), int64(s.Checksum()), timeNow(),
	).Scan(&snapshotID)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	batch := &pgx.Batch{}
	for i := 0; i < s.Len(); i++ {
		chunk := s.Chunk(i)
		batch.Queue(
			`INSERT INTO index_snapshot_chunks (snapshot_id, source_index, content, embedding)
			 VALUES ($1, $2, $3, $4)`,
			snapshotID, chunk.SourceIndex, chunk.Text, pgvector.NewVector(chunk.Embedding),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert snapshot chunks: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM index_snapshots WHERE id <> $1`, snapshotID); err != nil {
		return fmt.Errorf("failed to prune old snapshots: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *SnapshotRepository) Load(ctx context.Context) (*index.Snapshot, error) {
	var (
		snapshotID int64
		dimension  int
		model      string
		chunkCount int
		checksum   int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, dimension, embedding_model, chunk_count, checksum
		 FROM index_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&snapshotID, &dimension, &model, &chunkCount, &checksum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT content, embedding FROM index_snapshot_chunks
		 WHERE snapshot_id = $1 ORDER BY source_index ASC`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	texts := make([]string, 0, chunkCount)
	vectors := make([][]float32, 0, chunkCount)
	for rows.Next() {
		var text string
		var embedding pgvector.Vector
		if err := rows.Scan(&text, &embedding); err != nil {
			return nil, err
		}
		texts = append(texts, text)
		vectors = append(vectors, embedding.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(texts) != chunkCount {
		return nil, corruptSnapshot(fmt.Errorf("expected %d chunks, found %d", chunkCount, len(texts)))
	}

	snap, err := index.NewSnapshot(texts, vectors)
	if err != nil {
		return nil, corruptSnapshot(err)
	}
	if snap.Dimension() != dimension || int64(snap.Checksum()) != checksum {
		return nil, corruptSnapshot(fmt.Errorf("checksum or dimension mismatch"))
	}
	return snap.WithModel(model), nil
}

func corruptSnapshot(cause error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, domain.ErrSnapshotNotFound.Message,
		fmt.Errorf("%w: %v", index.ErrCorruptSnapshot, cause))
}

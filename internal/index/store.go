package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/cloo-solutions/supportiq/internal/domain"
)

// CorpusSource supplies the ordered reference documents an index is built from
type CorpusSource interface {
	Load(ctx context.Context) ([]string, error)
}

// SnapshotStore persists snapshots. Save must be all-or-nothing; Load returns
// an error matching domain.ErrSnapshotNotFound when nothing usable is stored.
type SnapshotStore interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// BlobStore stores opaque objects by key. A single Put must replace the whole
// object atomically and Get must report a missing key with fs.ErrNotExist.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// DefaultSnapshotKey is the object key used when none is configured.
const DefaultSnapshotKey = "knowledge-index.snapshot.json"

// BlobSnapshotStore keeps an encoded snapshot as one object in a BlobStore
type BlobSnapshotStore struct {
	blobs BlobStore
	key   string
}

// NewBlobSnapshotStore creates a SnapshotStore on top of blobs
func NewBlobSnapshotStore(blobs BlobStore, key string) *BlobSnapshotStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &BlobSnapshotStore{blobs: blobs, key: key}
}

// Save encodes s and writes it as a single object
func (b *BlobSnapshotStore) Save(ctx context.Context, s *Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := b.blobs.Put(ctx, b.key, data); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", b.key, err)
	}
	return nil
}

// Load reads and decodes the stored snapshot. Missing or corrupt objects are
// both reported as domain.ErrSnapshotNotFound so callers rebuild.
func (b *BlobSnapshotStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := b.blobs.Get(ctx, b.key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", b.key, err)
	}

	s, err := Decode(data)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, domain.ErrSnapshotNotFound.Message, err)
	}
	return s, nil
}

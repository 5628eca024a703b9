package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
)

const snapshotFormatVersion = 1

// ErrCorruptSnapshot is returned when encoded snapshot data fails validation.
var ErrCorruptSnapshot = errors.New("snapshot data is corrupt")

// snapshotEnvelope is the persisted form of a Snapshot. Texts and vectors
// travel together with a checksum so they cannot be read out of sync.
type snapshotEnvelope struct {
	Version   int       `json:"version"`
	Dimension int       `json:"dimension"`
	Model     string    `json:"model,omitempty"`
	Texts     []string  `json:"texts"`
	Vectors   []float32 `json:"vectors"`
	Checksum  uint32    `json:"checksum"`
}

// Encode serializes a snapshot into a single self-validating blob
func Encode(s *Snapshot) ([]byte, error) {
	if s == nil || s.Len() == 0 {
		return nil, fmt.Errorf("cannot encode empty snapshot")
	}

	env := snapshotEnvelope{
		Version:   snapshotFormatVersion,
		Dimension: s.dimension,
		Model:     s.model,
		Texts:     s.Texts(),
		Vectors:   s.vectors,
	}
	env.Checksum = checksum(env.Dimension, env.Texts, env.Vectors)

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a blob produced by Encode. Truncated, mismatched or tampered
// data yields an error wrapping ErrCorruptSnapshot.
func Decode(data []byte) (*Snapshot, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	if env.Version != snapshotFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, env.Version)
	}
	if env.Dimension <= 0 || len(env.Texts) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrCorruptSnapshot)
	}
	if len(env.Vectors) != len(env.Texts)*env.Dimension {
		return nil, fmt.Errorf("%w: %d texts but %d vector values at dimension %d",
			ErrCorruptSnapshot, len(env.Texts), len(env.Vectors), env.Dimension)
	}
	if sum := checksum(env.Dimension, env.Texts, env.Vectors); sum != env.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}

	rows := make([][]float32, len(env.Texts))
	for i := range rows {
		rows[i] = env.Vectors[i*env.Dimension : (i+1)*env.Dimension]
	}

	s, err := NewSnapshot(env.Texts, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	s.model = env.Model
	return s, nil
}

// Checksum returns the CRC-32 of the snapshot's dimension, texts and vectors
func (s *Snapshot) Checksum() uint32 {
	return checksum(s.dimension, s.Texts(), s.vectors)
}

func checksum(dimension int, texts []string, vectors []float32) uint32 {
	h := crc32.NewIEEE()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(dimension))
	h.Write(buf[:])
	for _, t := range texts {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(t)))
		h.Write(buf[:])
		h.Write([]byte(t))
	}
	for _, v := range vectors {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
		h.Write(buf[:4])
	}
	return h.Sum32()
}

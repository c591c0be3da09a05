// Package digest fingerprints a record stream so the two ends of a transfer
// can compare what was sent with what was received.
package digest

import (
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Stream accumulates a SHA3-256 over every record passed to Add, in order.
// Not safe for concurrent use; each side keeps its own.
type Stream struct {
	h     hash.Hash
	count uint64
}

// New returns an empty stream.
func New() *Stream {
	return &Stream{h: sha3.New256()}
}

// Add folds one record into the digest.
func (s *Stream) Add(p []byte) {
	s.h.Write(p) // hash.Hash.Write never fails
	s.count++
}

// Count returns the number of records added.
func (s *Stream) Count() uint64 { return s.count }

// Sum returns the digest of everything added so far. The stream remains
// usable.
func (s *Stream) Sum() [32]byte {
	var out [32]byte
	s.h.Sum(out[:0])
	return out
}

// Hex returns Sum as lowercase hex.
func (s *Stream) Hex() string {
	sum := s.Sum()
	return hex.EncodeToString(sum[:])
}

// Reset clears the stream for reuse.
func (s *Stream) Reset() {
	s.h.Reset()
	s.count = 0
}

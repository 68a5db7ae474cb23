// Package identity implements docbert's document-identity scheme: the
// deterministic numeric and short display IDs that link the three
// independently durable stores (FullTextIndex, EmbeddingStore,
// MetadataStore), and the chunk-ID encoding that folds a chunk index into a
// document's numeric ID.
//
// The original implementation hashes with Rust's std::hash::DefaultHasher
// (SipHash), which has no portable, versioned specification outside the
// Rust standard library. docbert hashes with FNV-1a instead: it is a
// standard-library primitive, fully specified, and — like SipHash here —
// used only for a stable non-cryptographic fingerprint, never for
// collision resistance against an adversary.
package identity

import (
	"fmt"
	"hash/fnv"
)

// chunkIndexShift is the bit position at which a chunk index is folded into
// a document's numeric ID. 48 leaves 48 low bits of hash entropy intact
// while reserving 16 high bits for the chunk index (more than enough for
// any document this chunker would ever produce).
const chunkIndexShift = 48

// DocID is the pair of identifiers derived from (collection, relative path).
type DocID struct {
	Numeric uint64
	Short   string
}

// NewDocID derives the deterministic numeric and short IDs for a document
// identified by (collection, relativePath). It is pure: the same pair always
// yields the same numeric ID, in this process and across restarts.
func NewDocID(collection, relativePath string) DocID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(collection))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(relativePath))
	numeric := h.Sum64()
	return DocID{Numeric: numeric, Short: ShortID(numeric, 6)}
}

// ShortID returns the lowercase hex prefix of length characters (6..16) of
// the zero-padded 16-hex-digit numeric ID. Collisions in the short form are
// tolerated at display time; full numeric IDs are used for lookup.
func ShortID(numeric uint64, length int) string {
	if length < 6 {
		length = 6
	}
	if length > 16 {
		length = 16
	}
	full := fmt.Sprintf("%016x", numeric)
	return full[:length]
}

// ChunkID encodes a zero-based chunk index into a document's numeric ID.
// ChunkID(base, 0) == base, so an unchunked document's chunk-0 ID equals the
// document ID itself.
func ChunkID(base uint64, index uint16) uint64 {
	return base ^ (uint64(index) << chunkIndexShift)
}

// RecoverBase reverses ChunkID given a known index. XOR is its own inverse,
// so this is the same operation as ChunkID; it is named separately because
// callers use it to recover a document's base ID from a chunk ID they
// already know the index of, not to re-derive a chunk ID from a base.
func RecoverBase(chunkID uint64, knownIndex uint16) uint64 {
	return chunkID ^ (uint64(knownIndex) << chunkIndexShift)
}

// Package store implements docbert's two KV-backed stores: MetadataStore
// (collections, contexts, document metadata, settings) and EmbeddingStore
// (chunk ID → per-token embedding matrix). Both are single-file, embedded,
// ACID-transactional engines backed by go.etcd.io/bbolt, mirroring the
// original implementation's use of redb for the same two concerns.
package store

import (
	"bytes"
	"fmt"
)

// Matrix is the per-token output of the encoder for one chunk: T tokens of
// D-dimensional float32 embeddings, row-major.
type Matrix struct {
	T    int
	D    int
	Data []float32
}

// DocumentMetadata is the record stored under a document's numeric ID: the
// collection it belongs to, its path relative to the collection root, and
// its last-seen modification time.
type DocumentMetadata struct {
	Collection   string
	RelativePath string
	MTime        uint64
}

// Serialize encodes md as "collection\x00relative_path\x00mtime_decimal".
// Fields containing NUL are rejected: the format relies on NUL as an
// unambiguous separator.
func (md DocumentMetadata) Serialize() ([]byte, error) {
	if bytes.ContainsRune([]byte(md.Collection), 0) {
		return nil, fmt.Errorf("collection name contains NUL byte")
	}
	if bytes.ContainsRune([]byte(md.RelativePath), 0) {
		return nil, fmt.Errorf("relative path contains NUL byte")
	}
	return fmt.Appendf(nil, "%s\x00%s\x00%d", md.Collection, md.RelativePath, md.MTime), nil
}

// DeserializeDocumentMetadata decodes a record written by Serialize.
func DeserializeDocumentMetadata(data []byte) (DocumentMetadata, error) {
	parts := bytes.SplitN(data, []byte{0}, 3)
	if len(parts) != 3 {
		return DocumentMetadata{}, fmt.Errorf("malformed document metadata record: expected 2 NUL separators, found %d", len(parts)-1)
	}
	var mtime uint64
	if _, err := fmt.Sscanf(string(parts[2]), "%d", &mtime); err != nil {
		return DocumentMetadata{}, fmt.Errorf("malformed document metadata mtime %q: %w", parts[2], err)
	}
	return DocumentMetadata{
		Collection:   string(parts[0]),
		RelativePath: string(parts[1]),
		MTime:        mtime,
	}, nil
}

// LoadResult is one entry of a BatchLoad result, preserving input order.
type LoadResult struct {
	ID     uint64
	Matrix Matrix
	Found  bool
}

// MetadataStore is a single-writer, multi-reader durable key/value engine
// over four logical tables, per the data model's Ownership section.
type MetadataStore interface {
	GetCollection(name string) (path string, ok bool, err error)
	SetCollection(name, path string) error
	RemoveCollection(name string) (existed bool, err error)
	ListCollections() (map[string]string, error)

	GetContext(uri string) (text string, ok bool, err error)
	SetContext(uri, text string) error
	RemoveContext(uri string) (existed bool, err error)
	ListContexts() (map[string]string, error)

	GetDocumentMetadata(id uint64) (DocumentMetadata, bool, error)
	SetDocumentMetadata(id uint64, md DocumentMetadata) error
	RemoveDocumentMetadata(id uint64) (existed bool, err error)
	ListDocumentMetadata() (map[uint64]DocumentMetadata, error)
	BatchSetDocumentMetadata(entries map[uint64]DocumentMetadata) error
	BatchRemoveDocumentMetadata(ids []uint64) error

	GetSetting(key string) (value string, ok bool, err error)
	SetSetting(key, value string) error
	RemoveSetting(key string) (existed bool, err error)
	ListSettings() (map[string]string, error)

	Close() error
}

// EmbeddingStore is a durable map from chunk ID to a framed embedding
// matrix, per §3/§4.3 and the EmbeddingStore record format in §6.
type EmbeddingStore interface {
	Store(id uint64, m Matrix) error
	Load(id uint64) (Matrix, bool, error)
	Remove(id uint64) (existed bool, err error)

	BatchStore(entries map[uint64]Matrix) error
	BatchLoad(ids []uint64) ([]LoadResult, error)
	BatchRemove(ids []uint64) error

	ListIDs() ([]uint64, error)

	Close() error
}

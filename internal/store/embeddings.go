package store

import (
	"encoding/binary"
	"fmt"
	"math"

	bolt "go.etcd.io/bbolt"

	docerrors "github.com/cfcosta/docbert/internal/errors"
)

var bucketEmbeddings = []byte("embeddings")

const frameHeaderSize = 8 // 2 little-endian u32 fields: T, D

// BoltEmbeddingStore is the bbolt-backed EmbeddingStore implementation.
// Values use the binary framing from the external interfaces layout:
// 4 bytes T, 4 bytes D, then T*D little-endian float32 values, row-major.
type BoltEmbeddingStore struct {
	db *bolt.DB
}

// OpenEmbeddingStore opens (creating if necessary) the EmbeddingStore file
// at path.
func OpenEmbeddingStore(path string) (*BoltEmbeddingStore, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, docerrors.StoreErrorf(docerrors.CodeStoreOpen, err, "opening embedding store %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, docerrors.StoreErrorf(docerrors.CodeStoreBucket, err, "initializing embedding store bucket")
	}

	return &BoltEmbeddingStore{db: db}, nil
}

func (s *BoltEmbeddingStore) Close() error {
	return s.db.Close()
}

// encodeMatrix frames m per the on-disk layout. It panics unless
// len(m.Data) == m.T*m.D: a mismatch is a programmer error, not a returned
// error.
func encodeMatrix(m Matrix) []byte {
	if len(m.Data) != m.T*m.D {
		panic(fmt.Sprintf("store: matrix data length %d does not match T*D=%d*%d", len(m.Data), m.T, m.D))
	}

	buf := make([]byte, frameHeaderSize+4*len(m.Data))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.T))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.D))
	for i, f := range m.Data {
		binary.LittleEndian.PutUint32(buf[frameHeaderSize+4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeMatrix parses the on-disk layout. A malformed entry (length not
// matching the T,D header) is reported as "not present" rather than an
// error, per §4.3, so a partially corrupted file is recoverable by rebuild.
func decodeMatrix(data []byte) (Matrix, bool) {
	if len(data) < frameHeaderSize {
		return Matrix{}, false
	}
	t := int(binary.LittleEndian.Uint32(data[0:4]))
	d := int(binary.LittleEndian.Uint32(data[4:8]))
	want := frameHeaderSize + 4*t*d
	if t < 1 || len(data) != want {
		return Matrix{}, false
	}

	values := make([]float32, t*d)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[frameHeaderSize+4*i:]))
	}
	return Matrix{T: t, D: d, Data: values}, true
}

func (s *BoltEmbeddingStore) Store(id uint64, m Matrix) error {
	encoded := encodeMatrix(m)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put(docKey(id), encoded)
	})
	if err != nil {
		return docerrors.StoreErrorf(docerrors.CodeStoreCommit, err, "storing embedding %d", id)
	}
	return nil
}

func (s *BoltEmbeddingStore) Load(id uint64) (Matrix, bool, error) {
	var m Matrix
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEmbeddings).Get(docKey(id))
		if v == nil {
			return nil
		}
		m, found = decodeMatrix(v)
		return nil
	})
	if err != nil {
		return Matrix{}, false, docerrors.StoreErrorf(docerrors.CodeStoreTx, err, "loading embedding %d", id)
	}
	return m, found, nil
}

func (s *BoltEmbeddingStore) Remove(id uint64) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		existed = b.Get(docKey(id)) != nil
		if !existed {
			return nil
		}
		return b.Delete(docKey(id))
	})
	if err != nil {
		return false, docerrors.StoreErrorf(docerrors.CodeStoreCommit, err, "removing embedding %d", id)
	}
	return existed, nil
}

// BatchStore commits all writes in one transaction. An empty input is a
// no-op that commits no transaction.
func (s *BoltEmbeddingStore) BatchStore(entries map[uint64]Matrix) error {
	if len(entries) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		for id, m := range entries {
			if err := b.Put(docKey(id), encodeMatrix(m)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return docerrors.StoreErrorf(docerrors.CodeStoreCommit, err, "batch storing %d embeddings", len(entries))
	}
	return nil
}

// BatchLoad opens exactly one read transaction regardless of input size and
// preserves the order of ids in the result.
func (s *BoltEmbeddingStore) BatchLoad(ids []uint64) ([]LoadResult, error) {
	results := make([]LoadResult, len(ids))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		for i, id := range ids {
			results[i].ID = id
			v := b.Get(docKey(id))
			if v == nil {
				continue
			}
			m, ok := decodeMatrix(v)
			results[i].Matrix = m
			results[i].Found = ok
		}
		return nil
	})
	if err != nil {
		return nil, docerrors.StoreErrorf(docerrors.CodeStoreTx, err, "batch loading %d embeddings", len(ids))
	}
	return results, nil
}

// BatchRemove commits all removals in one transaction. An empty input is a
// no-op that commits no transaction.
func (s *BoltEmbeddingStore) BatchRemove(ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		for _, id := range ids {
			if err := b.Delete(docKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return docerrors.StoreErrorf(docerrors.CodeStoreCommit, err, "batch removing %d embeddings", len(ids))
	}
	return nil
}

func (s *BoltEmbeddingStore) ListIDs() ([]uint64, error) {
	var ids []uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).ForEach(func(k, _ []byte) error {
			ids = append(ids, binary.BigEndian.Uint64(k))
			return nil
		})
	})
	if err != nil {
		return nil, docerrors.StoreErrorf(docerrors.CodeStoreTx, err, "listing embedding ids")
	}
	return ids, nil
}

package store

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	docerrors "github.com/cfcosta/docbert/internal/errors"
)

var (
	bucketCollections = []byte("collections")
	bucketContexts    = []byte("contexts")
	bucketDocMetadata = []byte("document_metadata")
	bucketSettings    = []byte("settings")
)

// BoltMetadataStore is the bbolt-backed MetadataStore implementation.
type BoltMetadataStore struct {
	db *bolt.DB
}

// OpenMetadataStore opens (creating if necessary) the MetadataStore file at
// path and ensures all four logical-table buckets exist.
func OpenMetadataStore(path string) (*BoltMetadataStore, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, docerrors.StoreErrorf(docerrors.CodeStoreOpen, err, "opening metadata store %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketCollections, bucketContexts, bucketDocMetadata, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, docerrors.StoreErrorf(docerrors.CodeStoreBucket, err, "initializing metadata store buckets")
	}

	return &BoltMetadataStore{db: db}, nil
}

func (s *BoltMetadataStore) Close() error {
	return s.db.Close()
}

// --- generic string-keyed table helpers ---

func (s *BoltMetadataStore) getString(bucket []byte, key string) (string, bool, error) {
	var value string
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v != nil {
			value = string(v)
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false, docerrors.StoreErrorf(docerrors.CodeStoreTx, err, "reading %s/%s", bucket, key)
	}
	return value, ok, nil
}

func (s *BoltMetadataStore) setString(bucket []byte, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return docerrors.StoreErrorf(docerrors.CodeStoreCommit, err, "writing %s/%s", bucket, key)
	}
	return nil
}

func (s *BoltMetadataStore) removeString(bucket []byte, key string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		existed = b.Get([]byte(key)) != nil
		if !existed {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return false, docerrors.StoreErrorf(docerrors.CodeStoreCommit, err, "removing %s/%s", bucket, key)
	}
	return existed, nil
}

func (s *BoltMetadataStore) listStrings(bucket []byte) (map[string]string, error) {
	result := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			result[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, docerrors.StoreErrorf(docerrors.CodeStoreTx, err, "listing %s", bucket)
	}
	return result, nil
}

// --- collections ---

func (s *BoltMetadataStore) GetCollection(name string) (string, bool, error) {
	return s.getString(bucketCollections, name)
}

func (s *BoltMetadataStore) SetCollection(name, path string) error {
	return s.setString(bucketCollections, name, path)
}

func (s *BoltMetadataStore) RemoveCollection(name string) (bool, error) {
	return s.removeString(bucketCollections, name)
}

func (s *BoltMetadataStore) ListCollections() (map[string]string, error) {
	return s.listStrings(bucketCollections)
}

// --- contexts ---

func (s *BoltMetadataStore) GetContext(uri string) (string, bool, error) {
	return s.getString(bucketContexts, uri)
}

func (s *BoltMetadataStore) SetContext(uri, text string) error {
	return s.setString(bucketContexts, uri, text)
}

func (s *BoltMetadataStore) RemoveContext(uri string) (bool, error) {
	return s.removeString(bucketContexts, uri)
}

func (s *BoltMetadataStore) ListContexts() (map[string]string, error) {
	return s.listStrings(bucketContexts)
}

// --- settings ---

func (s *BoltMetadataStore) GetSetting(key string) (string, bool, error) {
	return s.getString(bucketSettings, key)
}

func (s *BoltMetadataStore) SetSetting(key, value string) error {
	return s.setString(bucketSettings, key, value)
}

func (s *BoltMetadataStore) RemoveSetting(key string) (bool, error) {
	return s.removeString(bucketSettings, key)
}

func (s *BoltMetadataStore) ListSettings() (map[string]string, error) {
	return s.listStrings(bucketSettings)
}

// --- document_metadata ---

func docKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func (s *BoltMetadataStore) GetDocumentMetadata(id uint64) (DocumentMetadata, bool, error) {
	var md DocumentMetadata
	var ok bool
	var decodeErr error
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDocMetadata).Get(docKey(id))
		if v == nil {
			return nil
		}
		ok = true
		md, decodeErr = DeserializeDocumentMetadata(v)
		return nil
	})
	if err != nil {
		return DocumentMetadata{}, false, docerrors.StoreErrorf(docerrors.CodeStoreTx, err, "reading document metadata %d", id)
	}
	if decodeErr != nil {
		return DocumentMetadata{}, false, docerrors.StoreErrorf(docerrors.CodeStoreTx, decodeErr, "decoding document metadata %d", id)
	}
	return md, ok, nil
}

func (s *BoltMetadataStore) SetDocumentMetadata(id uint64, md DocumentMetadata) error {
	data, err := md.Serialize()
	if err != nil {
		return docerrors.ConfigErrorf(docerrors.CodeConfigInvalid, "serializing document metadata %d: %v", id, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocMetadata).Put(docKey(id), data)
	})
	if err != nil {
		return docerrors.StoreErrorf(docerrors.CodeStoreCommit, err, "writing document metadata %d", id)
	}
	return nil
}

func (s *BoltMetadataStore) RemoveDocumentMetadata(id uint64) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDocMetadata)
		existed = b.Get(docKey(id)) != nil
		if !existed {
			return nil
		}
		return b.Delete(docKey(id))
	})
	if err != nil {
		return false, docerrors.StoreErrorf(docerrors.CodeStoreCommit, err, "removing document metadata %d", id)
	}
	return existed, nil
}

func (s *BoltMetadataStore) ListDocumentMetadata() (map[uint64]DocumentMetadata, error) {
	result := make(map[uint64]DocumentMetadata)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocMetadata).ForEach(func(k, v []byte) error {
			id := binary.BigEndian.Uint64(k)
			md, err := DeserializeDocumentMetadata(v)
			if err != nil {
				return fmt.Errorf("document %d: %w", id, err)
			}
			result[id] = md
			return nil
		})
	})
	if err != nil {
		return nil, docerrors.StoreErrorf(docerrors.CodeStoreTx, err, "listing document metadata")
	}
	return result, nil
}

// BatchSetDocumentMetadata commits all inserts in one transaction. An empty
// input is a no-op that commits no transaction.
func (s *BoltMetadataStore) BatchSetDocumentMetadata(entries map[uint64]DocumentMetadata) error {
	if len(entries) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDocMetadata)
		for id, md := range entries {
			data, err := md.Serialize()
			if err != nil {
				return fmt.Errorf("document %d: %w", id, err)
			}
			if err := b.Put(docKey(id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return docerrors.StoreErrorf(docerrors.CodeStoreCommit, err, "batch writing %d document metadata entries", len(entries))
	}
	return nil
}

// BatchRemoveDocumentMetadata commits all removals in one transaction. An
// empty input is a no-op that commits no transaction.
func (s *BoltMetadataStore) BatchRemoveDocumentMetadata(ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDocMetadata)
		for _, id := range ids {
			if err := b.Delete(docKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return docerrors.StoreErrorf(docerrors.CodeStoreCommit, err, "batch removing %d document metadata entries", len(ids))
	}
	return nil
}

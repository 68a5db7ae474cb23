package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestMetadataStore(t *testing.T) *BoltMetadataStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.db")
	s, err := OpenMetadataStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDocumentMetadata_SerializeDeserialize_RoundTrip(t *testing.T) {
	md := DocumentMetadata{Collection: "notes", RelativePath: "a/b.md", MTime: 1700000000}
	data, err := md.Serialize()
	require.NoError(t, err)

	got, err := DeserializeDocumentMetadata(data)
	require.NoError(t, err)
	assert.Equal(t, md, got)
}

func TestDocumentMetadata_Serialize_RejectsNUL(t *testing.T) {
	_, err := DocumentMetadata{Collection: "no\x00tes"}.Serialize()
	assert.Error(t, err)
}

func TestDeserializeDocumentMetadata_RejectsMalformed(t *testing.T) {
	_, err := DeserializeDocumentMetadata([]byte("onlyonefield"))
	assert.Error(t, err)
}

func TestMetadataStore_CollectionsLifecycle(t *testing.T) {
	s := openTestMetadataStore(t)

	_, ok, err := s.GetCollection("notes")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetCollection("notes", "/home/user/notes"))
	path, ok, err := s.GetCollection("notes")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/home/user/notes", path)

	existed, err := s.RemoveCollection("notes")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.RemoveCollection("notes")
	require.NoError(t, err)
	assert.False(t, existed, "removing an already-removed key returns false")
}

func TestMetadataStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.db")

	s1, err := OpenMetadataStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.SetCollection("notes", "/path"))
	require.NoError(t, s1.SetSetting("model_name", "colbert-v2"))
	require.NoError(t, s1.Close())

	s2, err := OpenMetadataStore(path)
	require.NoError(t, err)
	defer s2.Close()

	path2, ok, err := s2.GetCollection("notes")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/path", path2)

	model, ok, err := s2.GetSetting("model_name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "colbert-v2", model)
}

func TestMetadataStore_DocumentMetadata_BatchOperations(t *testing.T) {
	s := openTestMetadataStore(t)

	entries := map[uint64]DocumentMetadata{
		1: {Collection: "notes", RelativePath: "a.md", MTime: 100},
		2: {Collection: "notes", RelativePath: "b.md", MTime: 200},
	}
	require.NoError(t, s.BatchSetDocumentMetadata(entries))

	all, err := s.ListDocumentMetadata()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, entries[1], all[1])

	require.NoError(t, s.BatchRemoveDocumentMetadata([]uint64{1}))
	all, err = s.ListDocumentMetadata()
	require.NoError(t, err)
	assert.Len(t, all, 1)
	_, ok := all[1]
	assert.False(t, ok)
}

func TestMetadataStore_BatchOperations_EmptyInputIsNoop(t *testing.T) {
	s := openTestMetadataStore(t)
	require.NoError(t, s.BatchSetDocumentMetadata(nil))
	require.NoError(t, s.BatchRemoveDocumentMetadata(nil))
}

func TestMetadataStore_Contexts(t *testing.T) {
	s := openTestMetadataStore(t)

	require.NoError(t, s.SetContext("bert://notes", "personal reading notes"))
	text, ok, err := s.GetContext("bert://notes")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "personal reading notes", text)

	all, err := s.ListContexts()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

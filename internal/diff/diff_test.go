package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfcosta/docbert/internal/store"
	"github.com/cfcosta/docbert/internal/walker"
)

type fakeMetadata struct {
	docs map[uint64]store.DocumentMetadata
}

func (f *fakeMetadata) GetCollection(string) (string, bool, error)    { return "", false, nil }
func (f *fakeMetadata) SetCollection(string, string) error            { return nil }
func (f *fakeMetadata) RemoveCollection(string) (bool, error)         { return false, nil }
func (f *fakeMetadata) ListCollections() (map[string]string, error)   { return nil, nil }
func (f *fakeMetadata) GetContext(string) (string, bool, error)       { return "", false, nil }
func (f *fakeMetadata) SetContext(string, string) error               { return nil }
func (f *fakeMetadata) RemoveContext(string) (bool, error)            { return false, nil }
func (f *fakeMetadata) ListContexts() (map[string]string, error)      { return nil, nil }
func (f *fakeMetadata) GetSetting(string) (string, bool, error)       { return "", false, nil }
func (f *fakeMetadata) SetSetting(string, string) error               { return nil }
func (f *fakeMetadata) RemoveSetting(string) (bool, error)            { return false, nil }
func (f *fakeMetadata) ListSettings() (map[string]string, error)      { return nil, nil }
func (f *fakeMetadata) Close() error                                  { return nil }

func (f *fakeMetadata) GetDocumentMetadata(id uint64) (store.DocumentMetadata, bool, error) {
	md, ok := f.docs[id]
	return md, ok, nil
}
func (f *fakeMetadata) SetDocumentMetadata(id uint64, md store.DocumentMetadata) error {
	f.docs[id] = md
	return nil
}
func (f *fakeMetadata) RemoveDocumentMetadata(id uint64) (bool, error) {
	_, ok := f.docs[id]
	delete(f.docs, id)
	return ok, nil
}
func (f *fakeMetadata) ListDocumentMetadata() (map[uint64]store.DocumentMetadata, error) {
	return f.docs, nil
}
func (f *fakeMetadata) BatchSetDocumentMetadata(entries map[uint64]store.DocumentMetadata) error {
	for id, md := range entries {
		f.docs[id] = md
	}
	return nil
}
func (f *fakeMetadata) BatchRemoveDocumentMetadata(ids []uint64) error {
	for _, id := range ids {
		delete(f.docs, id)
	}
	return nil
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{docs: make(map[uint64]store.DocumentMetadata)}
}

func TestDiff_AllNewFiles(t *testing.T) {
	md := newFakeMetadata()
	files := []walker.DiscoveredFile{
		{RelativePath: "a.md", MTime: 100},
		{RelativePath: "b.md", MTime: 200},
	}

	result, err := Diff(md, "notes", files)
	require.NoError(t, err)
	assert.Len(t, result.New, 2)
	assert.Empty(t, result.Changed)
	assert.Empty(t, result.DeletedIDs)
}

func TestDiff_UnchangedFilesAreOmitted(t *testing.T) {
	md := newFakeMetadata()
	md.docs[1] = store.DocumentMetadata{Collection: "notes", RelativePath: "a.md", MTime: 100}

	result, err := Diff(md, "notes", []walker.DiscoveredFile{{RelativePath: "a.md", MTime: 100}})
	require.NoError(t, err)
	assert.Empty(t, result.New)
	assert.Empty(t, result.Changed)
	assert.Empty(t, result.DeletedIDs)
}

func TestDiff_ChangedMTimeIsReported(t *testing.T) {
	md := newFakeMetadata()
	md.docs[1] = store.DocumentMetadata{Collection: "notes", RelativePath: "a.md", MTime: 100}

	result, err := Diff(md, "notes", []walker.DiscoveredFile{{RelativePath: "a.md", MTime: 200}})
	require.NoError(t, err)
	require.Len(t, result.Changed, 1)
	assert.Equal(t, "a.md", result.Changed[0].RelativePath)
}

func TestDiff_MissingFileIsDeleted(t *testing.T) {
	md := newFakeMetadata()
	md.docs[1] = store.DocumentMetadata{Collection: "notes", RelativePath: "a.md", MTime: 100}

	result, err := Diff(md, "notes", nil)
	require.NoError(t, err)
	require.Len(t, result.DeletedIDs, 1)
	assert.Equal(t, uint64(1), result.DeletedIDs[0])
}

func TestDiff_IgnoresOtherCollections(t *testing.T) {
	md := newFakeMetadata()
	md.docs[1] = store.DocumentMetadata{Collection: "other", RelativePath: "a.md", MTime: 100}

	result, err := Diff(md, "notes", []walker.DiscoveredFile{{RelativePath: "a.md", MTime: 100}})
	require.NoError(t, err)
	assert.Len(t, result.New, 1)
	assert.Empty(t, result.DeletedIDs)
}

package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/cfcosta/docbert/internal/errors"
	"github.com/cfcosta/docbert/internal/fulltext"
	"github.com/cfcosta/docbert/internal/model"
	"github.com/cfcosta/docbert/internal/search"
	"github.com/cfcosta/docbert/internal/store"
)

func newTestEncoder(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/encode_query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(struct {
			Tokens [][]float32 `json:"tokens"`
		}{Tokens: [][]float32{{1, 0}}})
	})
	mux.HandleFunc("/encode_documents", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		docs := make([][][]float32, len(req.Texts))
		for i := range docs {
			docs[i] = [][]float32{{1, 0}}
		}
		_ = json.NewEncoder(w).Encode(struct {
			Documents [][][]float32 `json:"documents"`
		}{Documents: docs})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, string) {
	t.Helper()
	ft, err := fulltext.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ft.Close() })

	dir := t.TempDir()
	emb, err := store.OpenEmbeddingStore(filepath.Join(dir, "embeddings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = emb.Close() })

	md, err := store.OpenMetadataStore(filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = md.Close() })

	srv := newTestEncoder(t)
	mf := model.NewFacade(srv.URL, "test-model", dir)
	t.Cleanup(func() { _ = mf.Close() })

	o := New(ft, emb, md, mf, 4096, 0, 32, 1000, 64)

	collectionRoot := t.TempDir()
	return o, collectionRoot
}

func TestCollectionAdd_RejectsDuplicateName(t *testing.T) {
	o, root := newTestOrchestrator(t)
	require.NoError(t, o.CollectionAdd("notes", root))
	err := o.CollectionAdd("notes", root)
	assert.Error(t, err)
}

func TestCollectionAdd_RejectsNonDirectory(t *testing.T) {
	o, root := newTestOrchestrator(t)
	file := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	err := o.CollectionAdd("notes", file)
	assert.Error(t, err)
}

func TestSync_IndexesNewFilesAndSearchFindsThem(t *testing.T) {
	o, root := newTestOrchestrator(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.md"), []byte("# Hello\n\nThis document discusses widgets at length."), 0o644))
	require.NoError(t, o.CollectionAdd("notes", root))

	result, err := o.Sync(context.Background(), "notes")
	require.NoError(t, err)
	assert.Equal(t, 1, result.New)
	assert.Equal(t, 1, result.Indexed)

	results, err := o.Search(context.Background(), search.Params{Query: "widgets", Count: 10, BM25Only: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "notes", results[0].Collection)
}

func TestSync_RemovesDeletedFiles(t *testing.T) {
	o, root := newTestOrchestrator(t)
	filePath := filepath.Join(root, "hello.md")
	require.NoError(t, os.WriteFile(filePath, []byte("# Hello\n\nWidgets everywhere."), 0o644))
	require.NoError(t, o.CollectionAdd("notes", root))

	_, err := o.Sync(context.Background(), "notes")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filePath))
	result, err := o.Sync(context.Background(), "notes")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	results, err := o.Search(context.Background(), search.Params{Query: "widgets", Count: 10, BM25Only: true})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSync_RefusesWhenEmbeddingModelMismatches(t *testing.T) {
	o, root := newTestOrchestrator(t)
	require.NoError(t, o.CollectionAdd("notes", root))
	require.NoError(t, o.metadata.SetSetting(settingEmbeddingModel, "some-other-model"))

	_, err := o.Sync(context.Background(), "notes")
	require.Error(t, err)
	assert.True(t, docerrors.GetKind(err) != "")
}

func TestCollectionRemove_PurgesAllState(t *testing.T) {
	o, root := newTestOrchestrator(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.md"), []byte("# Hello\n\nWidgets."), 0o644))
	require.NoError(t, o.CollectionAdd("notes", root))
	_, err := o.Sync(context.Background(), "notes")
	require.NoError(t, err)

	require.NoError(t, o.CollectionRemove("notes"))

	_, exists, err := o.metadata.GetCollection("notes")
	require.NoError(t, err)
	assert.False(t, exists)

	results, err := o.Search(context.Background(), search.Params{Query: "widgets", Count: 10, BM25Only: true})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGet_ResolvesByShortID(t *testing.T) {
	o, root := newTestOrchestrator(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.md"), []byte("# Hello\n\nWidgets."), 0o644))
	require.NoError(t, o.CollectionAdd("notes", root))
	_, err := o.Sync(context.Background(), "notes")
	require.NoError(t, err)

	doc, err := o.Get("notes:hello.md")
	require.NoError(t, err)
	assert.Equal(t, "Hello", doc.Title)

	byShort, err := o.Get("#" + doc.ShortID)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, byShort.Content)

	byPath, err := o.Get("hello.md")
	require.NoError(t, err)
	assert.Equal(t, doc.Content, byPath.Content)
}

func TestGet_UnknownReferenceReturnsNotFound(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	_, err := o.Get("#ffffff")
	require.Error(t, err)
	assert.True(t, docerrors.IsNotFound(err))
}

func TestStatus_ReportsDocumentCountsAndModelSettings(t *testing.T) {
	o, root := newTestOrchestrator(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.md"), []byte("# Hello\n\nWidgets."), 0o644))
	require.NoError(t, o.CollectionAdd("notes", root))
	_, err := o.Sync(context.Background(), "notes")
	require.NoError(t, err)

	status, err := o.Status()
	require.NoError(t, err)
	require.Contains(t, status.Collections, "notes")
	assert.Equal(t, 1, status.Collections["notes"].DocumentCount)
}

func TestRebuild_SetsEmbeddingModelSetting(t *testing.T) {
	o, root := newTestOrchestrator(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.md"), []byte("# Hello\n\nWidgets."), 0o644))
	require.NoError(t, o.CollectionAdd("notes", root))

	require.NoError(t, o.Rebuild(context.Background(), "notes", false, false))

	embeddingModel, ok, err := o.metadata.GetSetting(settingEmbeddingModel)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "test-model", embeddingModel)
}

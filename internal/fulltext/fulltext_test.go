package fulltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestAdd_UpsertsBySameShortID(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.Add("abc123", 1, "notes", "a.md", "Old Title", "first body about rivers", 100))
	require.NoError(t, idx.Add("abc123", 1, "notes", "a.md", "New Title", "second body about mountains", 200))

	results, err := idx.Search("mountains", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "New Title", results[0].Title)

	results, err = idx.Search("rivers", 10)
	require.NoError(t, err)
	assert.Empty(t, results, "the old body must not still be searchable after an upsert")
}

func TestSearch_TitleIsBoostedOverBody(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.Add("doc-title", 1, "notes", "title.md", "gardening tips", "unrelated filler content", 1))
	require.NoError(t, idx.Add("doc-body", 2, "notes", "body.md", "unrelated filler content", "gardening tips buried in the body text", 1))

	results, err := idx.Search("gardening tips", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-title", results[0].DocID, "a title match should outrank a body-only match")
}

func TestSearch_StemsEnglishTerms(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("stem-1", 1, "notes", "a.md", "Running", "the fox was running through the forest", 1))

	results, err := idx.Search("run", 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "stemming should match run/running/runs to the same root")
}

func TestSearch_BlankQueryReturnsNoHits(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("doc-1", 1, "notes", "a.md", "title", "body", 1))

	results, err := idx.Search("   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchInCollection_FiltersByCollection(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("doc-a", 1, "work", "a.md", "quarterly planning", "quarterly planning notes", 1))
	require.NoError(t, idx.Add("doc-b", 2, "personal", "b.md", "quarterly planning", "quarterly planning notes", 1))

	results, err := idx.SearchInCollection("quarterly planning", "work", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-a", results[0].DocID)
}

func TestSearchFuzzy_MatchesMisspelledTerm(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("doc-1", 1, "notes", "a.md", "title", "a recipe for risotto with mushrooms", 1))

	results, err := idx.SearchFuzzy("risoto", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].DocID)
}

func TestSearchFuzzy_IgnoresShortTermsForFuzzyMatching(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("doc-1", 1, "notes", "a.md", "title", "a big red fox", 1))

	// "xz" is length 2, below fuzzyMinTermLength, so it must not fuzzy-match "fox".
	results, err := idx.SearchFuzzy("xz", "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteByShortID_RemovesDocument(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("doc-1", 1, "notes", "a.md", "title", "gardening tips", 1))

	require.NoError(t, idx.DeleteByShortID("doc-1"))

	results, err := idx.Search("gardening", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteByCollection_RemovesOnlyThatCollection(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("doc-a", 1, "work", "a.md", "shared term", "shared term body", 1))
	require.NoError(t, idx.Add("doc-b", 2, "personal", "b.md", "shared term", "shared term body", 1))

	require.NoError(t, idx.DeleteByCollection("work"))

	results, err := idx.Search("shared term", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-b", results[0].DocID)
}

func TestSearch_ReturnsStoredFields(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("doc-1", 42, "notes", "deep/path.md", "hello world", "hello world body", 12345))

	results, err := idx.Search("hello", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "doc-1", r.DocID)
	assert.Equal(t, uint64(42), r.DocNumID)
	assert.Equal(t, "notes", r.Collection)
	assert.Equal(t, "deep/path.md", r.Path)
	assert.Equal(t, "hello world", r.Title)
	assert.Equal(t, uint64(12345), r.MTime)
}

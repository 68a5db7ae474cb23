// Package fulltext implements docbert's FullTextIndex: a BM25 inverted
// index over indexed chunks, backed by github.com/blevesearch/bleve/v2 the
// same way the teacher's BM25 store wraps it — a custom analyzer registered
// on an IndexMapping, with corruption-tolerant open/create.
package fulltext

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en" // registers the stemmer_en_snowball token filter
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	docerrors "github.com/cfcosta/docbert/internal/errors"
)

const (
	englishAnalyzerName = "docbert_en"
	lengthFilterName    = "docbert_length_40"
	// stemmerFilterName is the token filter registered by the blank-imported
	// analysis/lang/en package.
	stemmerFilterName = "stemmer_en_snowball"

	fieldDocID      = "doc_id"
	fieldDocNumID   = "doc_num_id"
	fieldCollection = "collection"
	fieldPath       = "path"
	fieldTitle      = "title"
	fieldBody       = "body"
	fieldMTime      = "mtime"

	titleBoost = 2.0

	// fuzzyMinTermLength and fuzzyEditDistance are the intentional fuzzy
	// threshold from the design notes: relaxing either causes
	// false-positive-dominated rankings.
	fuzzyMinTermLength = 3
	fuzzyEditDistance  = 1
)

// Result is one hit returned by a query.
type Result struct {
	DocID      string
	DocNumID   uint64
	Collection string
	Path       string
	Title      string
	MTime      uint64
	Score      float64
}

// indexDoc is the document shape bleve indexes. DocNumID is kept as a
// decimal string (not a bleve numeric field) so the full 64-bit value
// round-trips exactly; bleve's numeric mapping stores float64, which would
// lose precision for hashes near 2^63.
type indexDoc struct {
	DocID      string `json:"doc_id"`
	DocNumID   string `json:"doc_num_id"`
	Collection string `json:"collection"`
	Path       string `json:"path"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	MTime      uint64 `json:"mtime"`
}

// Index is the FullTextIndex: BM25 over title (2x boosted) and body, with
// English stemming and fuzzy term matching.
type Index struct {
	mu    sync.RWMutex
	bleve bleve.Index
}

// Open opens (or creates) a FullTextIndex directory.
func Open(dir string) (*Index, error) {
	m, err := buildMapping()
	if err != nil {
		return nil, docerrors.IndexErrorf(docerrors.CodeIndexOpen, err, "building index mapping")
	}

	idx, err := bleve.Open(dir)
	if err == bleve.ErrorIndexPathDoesNotExist {
		if mkErr := os.MkdirAll(filepath.Dir(dir), 0o755); mkErr != nil {
			return nil, docerrors.IOErrorf(docerrors.CodeIOMkdir, "creating parent of %s: %v", dir, mkErr)
		}
		idx, err = bleve.New(dir, m)
	} else if err != nil && isCorrupt(err) {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return nil, docerrors.IndexErrorf(docerrors.CodeIndexOpen, rmErr, "clearing corrupt index at %s", dir)
		}
		idx, err = bleve.New(dir, m)
	}
	if err != nil {
		return nil, docerrors.IndexErrorf(docerrors.CodeIndexOpen, err, "opening full-text index at %s", dir)
	}

	return &Index{bleve: idx}, nil
}

// OpenInMemory opens an in-memory index, for tests.
func OpenInMemory() (*Index, error) {
	m, err := buildMapping()
	if err != nil {
		return nil, docerrors.IndexErrorf(docerrors.CodeIndexOpen, err, "building index mapping")
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, docerrors.IndexErrorf(docerrors.CodeIndexOpen, err, "opening in-memory full-text index")
	}
	return &Index{bleve: idx}, nil
}

func isCorrupt(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		err == bleve.ErrorIndexMetaCorrupt
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomTokenFilter(lengthFilterName, map[string]any{
		"type": length.Name,
		"min":  1.0,
		"max":  40.0,
	}); err != nil {
		return nil, fmt.Errorf("adding length token filter: %w", err)
	}

	if err := im.AddCustomAnalyzer(englishAnalyzerName, map[string]any{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lengthFilterName,
			lowercase.Name,
			stemmerFilterName,
		},
	}); err != nil {
		return nil, fmt.Errorf("adding english analyzer: %w", err)
	}

	textField := func(analyzer string, stored bool) *mapping.FieldMapping {
		fm := mapping.NewTextFieldMapping()
		fm.Analyzer = analyzer
		fm.Store = stored
		fm.IncludeTermVectors = true // positions, for phrase queries
		return fm
	}

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt(fieldDocID, textField(keyword.Name, true))
	docMapping.AddFieldMappingsAt(fieldDocNumID, textField(keyword.Name, true))
	docMapping.AddFieldMappingsAt(fieldCollection, textField(keyword.Name, true))
	docMapping.AddFieldMappingsAt(fieldPath, textField(keyword.Name, true))
	docMapping.AddFieldMappingsAt(fieldTitle, textField(englishAnalyzerName, true))
	docMapping.AddFieldMappingsAt(fieldBody, textField(englishAnalyzerName, false))

	mtimeField := mapping.NewNumericFieldMapping()
	mtimeField.Store = true
	docMapping.AddFieldMappingsAt(fieldMTime, mtimeField)

	im.DefaultMapping = docMapping
	return im, nil
}

// Add atomically replaces any prior document with the same short ID (bleve
// upserts by document ID, so indexing with the same ID is the delete). The
// document is searchable as soon as Add returns; there is no separate
// commit step.
func (idx *Index) Add(shortID string, numID uint64, collection, path, title, body string, mtime uint64) error {
	doc := indexDoc{
		DocID:      shortID,
		DocNumID:   strconv.FormatUint(numID, 10),
		Collection: collection,
		Path:       path,
		Title:      title,
		Body:       body,
		MTime:      mtime,
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.bleve.Index(shortID, doc); err != nil {
		return docerrors.IndexErrorf(docerrors.CodeIndexCommit, err, "indexing document %s", shortID)
	}
	return nil
}

// DeleteByShortID removes the document with the given short ID, the delete
// key callers must keep unique per indexed chunk.
func (idx *Index) DeleteByShortID(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.bleve.Delete(id); err != nil {
		return docerrors.IndexErrorf(docerrors.CodeIndexCommit, err, "deleting document %s", id)
	}
	return nil
}

// DeleteByCollection removes every document belonging to collection.
func (idx *Index) DeleteByCollection(collection string) error {
	ids, err := idx.collectionDocIDs(collection)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	batch := idx.bleve.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := idx.bleve.Batch(batch); err != nil {
		return docerrors.IndexErrorf(docerrors.CodeIndexCommit, err, "deleting collection %s", collection)
	}
	return nil
}

func (idx *Index) collectionDocIDs(collection string) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	q := bleve.NewTermQuery(collection)
	q.SetField(fieldCollection)
	req := bleve.NewSearchRequestOptions(q, 1_000_000, 0, false)
	res, err := idx.bleve.Search(req)
	if err != nil {
		return nil, docerrors.IndexErrorf(docerrors.CodeIndexQuery, err, "listing documents for collection %s", collection)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Search returns the top limit candidates ranked by BM25, title boosted 2x.
// The query parser tolerates malformed input: an empty or whitespace-only
// query returns no hits rather than erroring.
func (idx *Index) Search(queryText string, limit int) ([]Result, error) {
	return idx.search(idx.baseQuery(queryText), limit)
}

// SearchInCollection is Search conjoined with an equality filter on collection.
func (idx *Index) SearchInCollection(queryText, collection string, limit int) ([]Result, error) {
	q := bleve.NewConjunctionQuery(idx.baseQuery(queryText), collectionFilter(collection))
	return idx.search(q, limit)
}

// SearchFuzzy ORs the parsed BM25 query with a fuzzy term query (edit
// distance 1) over body for every query term of length >= 3, then
// optionally ANDs with a collection filter. Because every hit maps to a
// single underlying document (bleve documents are keyed by short ID),
// running this as one combined query is itself the deduplication: a
// document can only appear once in the result set, with its score being the
// best of whichever disjunct matched.
func (idx *Index) SearchFuzzy(queryText string, collection string, limit int) ([]Result, error) {
	disjuncts := []bleve.Query{idx.baseQuery(queryText)}
	for _, term := range fuzzyTerms(queryText) {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetField(fieldBody)
		fq.Fuzziness = fuzzyEditDistance
		disjuncts = append(disjuncts, fq)
	}

	var q bleve.Query = bleve.NewDisjunctionQuery(disjuncts...)
	if collection != "" {
		q = bleve.NewConjunctionQuery(q, collectionFilter(collection))
	}
	return idx.search(q, limit)
}

func fuzzyTerms(queryText string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(queryText)) {
		if len(t) >= fuzzyMinTermLength {
			terms = append(terms, t)
		}
	}
	return terms
}

func collectionFilter(collection string) bleve.Query {
	q := bleve.NewTermQuery(collection)
	q.SetField(fieldCollection)
	return q
}

// baseQuery builds the title(2x)/body disjunction that backs every search
// variant. A blank query degrades to MatchNone rather than erroring, per the
// lenient-parse contract.
func (idx *Index) baseQuery(queryText string) bleve.Query {
	if strings.TrimSpace(queryText) == "" {
		return bleve.NewMatchNoneQuery()
	}

	title := bleve.NewMatchQuery(queryText)
	title.SetField(fieldTitle)
	title.SetBoost(titleBoost)

	body := bleve.NewMatchQuery(queryText)
	body.SetField(fieldBody)

	return bleve.NewDisjunctionQuery(title, body)
}

func (idx *Index) search(q bleve.Query, limit int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{fieldDocID, fieldDocNumID, fieldCollection, fieldPath, fieldTitle, fieldMTime}

	res, err := idx.bleve.Search(req)
	if err != nil {
		return nil, docerrors.IndexErrorf(docerrors.CodeIndexQuery, err, "executing query")
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := Result{
			DocID: hit.ID,
			Score: hit.Score,
		}
		if v, ok := hit.Fields[fieldDocNumID].(string); ok {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				r.DocNumID = n
			}
		}
		if v, ok := hit.Fields[fieldCollection].(string); ok {
			r.Collection = v
		}
		if v, ok := hit.Fields[fieldPath].(string); ok {
			r.Path = v
		}
		if v, ok := hit.Fields[fieldTitle].(string); ok {
			r.Title = v
		}
		if v, ok := hit.Fields[fieldMTime].(float64); ok {
			r.MTime = uint64(v)
		}
		results = append(results, r)
	}
	return results, nil
}

// Close releases the underlying index.
func (idx *Index) Close() error {
	return idx.bleve.Close()
}

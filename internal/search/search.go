// Package search implements SearchPipeline and SemanticPipeline: the two
// read-side operations that turn a query into ranked results, the first
// starting from lexical candidates, the second scanning every document.
package search

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/cfcosta/docbert/internal/fulltext"
	"github.com/cfcosta/docbert/internal/identity"
	"github.com/cfcosta/docbert/internal/model"
	"github.com/cfcosta/docbert/internal/store"
	"github.com/cfcosta/docbert/internal/walker"
)

// defaultCandidateLimit bounds stage-1 lexical retrieval before reranking,
// used when Pipeline is constructed with a non-positive candidateLimit.
const defaultCandidateLimit = 1000

// defaultSemanticBatch is how many document IDs are loaded from the
// EmbeddingStore per transaction during SemanticPipeline, used when Pipeline
// is constructed with a non-positive semanticBatch.
const defaultSemanticBatch = 64

// Result is one ranked entry returned by either pipeline.
type Result struct {
	Rank         int
	Score        float64
	ShortDocID   string
	NumericDocID uint64
	Collection   string
	Path         string
	Title        string
}

// Params configures SearchPipeline.
type Params struct {
	Query      string
	Count      int
	Collection string // empty means search all collections
	MinScore   float64
	BM25Only   bool
	NoFuzzy    bool
	All        bool
}

// Pipeline runs SearchPipeline and SemanticPipeline against the three
// durable stores plus the ModelFacade.
type Pipeline struct {
	fulltext       *fulltext.Index
	embeddings     store.EmbeddingStore
	metadata       store.MetadataStore
	model          *model.Facade
	roots          func(collection string) (string, bool)
	candidateLimit int
	semanticBatch  int
}

// New builds a Pipeline. roots resolves a collection name to its root
// directory (for lazy title extraction in SemanticPipeline); it may be nil
// if callers never need SemanticPipeline title resolution via filesystem.
// candidateLimit and semanticBatch come from Config.Search.CandidateCap/
// SemanticBatch; a non-positive value falls back to the compiled default.
func New(ft *fulltext.Index, embeddings store.EmbeddingStore, metadata store.MetadataStore, mf *model.Facade, roots func(collection string) (string, bool), candidateLimit, semanticBatch int) *Pipeline {
	if candidateLimit <= 0 {
		candidateLimit = defaultCandidateLimit
	}
	if semanticBatch <= 0 {
		semanticBatch = defaultSemanticBatch
	}
	return &Pipeline{
		fulltext:       ft,
		embeddings:     embeddings,
		metadata:       metadata,
		model:          mf,
		roots:          roots,
		candidateLimit: candidateLimit,
		semanticBatch:  semanticBatch,
	}
}

// Search runs the hybrid BM25 + ColBERT pipeline described in the component
// design: lexical candidate generation, optional MaxSim rerank, min-score
// filter, then truncate-and-rank.
func (p *Pipeline) Search(ctx context.Context, params Params) ([]Result, error) {
	candidates, err := p.lexicalCandidates(params)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var scored []Result
	if params.BM25Only {
		scored = candidates
	} else {
		scored, err = p.rerank(ctx, params.Query, candidates)
		if err != nil {
			return nil, err
		}
	}

	filtered := make([]Result, 0, len(scored))
	for _, r := range scored {
		if r.Score >= params.MinScore {
			filtered = append(filtered, r)
		}
	}

	limit := len(filtered)
	if !params.All && params.Count < limit {
		limit = params.Count
	}
	filtered = filtered[:limit]
	for i := range filtered {
		filtered[i].Rank = i + 1
	}
	return filtered, nil
}

func (p *Pipeline) lexicalCandidates(params Params) ([]Result, error) {
	var hits []fulltext.Result
	var err error

	switch {
	case params.NoFuzzy && params.Collection != "":
		hits, err = p.fulltext.SearchInCollection(params.Query, params.Collection, p.candidateLimit)
	case params.NoFuzzy:
		hits, err = p.fulltext.Search(params.Query, p.candidateLimit)
	default:
		hits, err = p.fulltext.SearchFuzzy(params.Query, params.Collection, p.candidateLimit)
	}
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Score:        h.Score,
			ShortDocID:   h.DocID,
			NumericDocID: h.DocNumID,
			Collection:   h.Collection,
			Path:         h.Path,
			Title:        h.Title,
		}
	}
	return results, nil
}

// rerank computes MaxSim between the query and each candidate's chunk-0
// embedding (the document-level embedding). Candidates with no stored
// embedding are dropped, per the "embedding missing" recovery guarantee.
func (p *Pipeline) rerank(ctx context.Context, query string, candidates []Result) ([]Result, error) {
	queryMatrix, err := p.model.EncodeQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, len(candidates))
	byID := make(map[uint64]Result, len(candidates))
	for i, c := range candidates {
		ids[i] = c.NumericDocID
		byID[c.NumericDocID] = c
	}

	loaded, err := p.embeddings.BatchLoad(ids)
	if err != nil {
		return nil, err
	}

	reranked := make([]Result, 0, len(loaded))
	for _, l := range loaded {
		if !l.Found {
			continue
		}
		r := byID[l.ID]
		r.Score = model.MaxSim(queryMatrix, l.Matrix)
		reranked = append(reranked, r)
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	return reranked, nil
}

// SemanticParams configures SemanticPipeline.
type SemanticParams struct {
	Query    string
	Count    int
	MinScore float64
	All      bool
}

// Semantic runs SemanticPipeline: it scores every indexed document against
// the query's embedding, regardless of lexical match.
func (p *Pipeline) Semantic(ctx context.Context, params SemanticParams) ([]Result, error) {
	all, err := p.metadata.ListDocumentMetadata()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	ids := make([]uint64, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}

	queryMatrix, err := p.model.EncodeQuery(ctx, params.Query)
	if err != nil {
		return nil, err
	}

	type scored struct {
		id    uint64
		score float64
	}
	var results []scored

	for start := 0; start < len(ids); start += p.semanticBatch {
		end := start + p.semanticBatch
		if end > len(ids) {
			end = len(ids)
		}
		loaded, err := p.embeddings.BatchLoad(ids[start:end])
		if err != nil {
			return nil, err
		}
		for _, l := range loaded {
			if !l.Found {
				continue
			}
			results = append(results, scored{id: l.ID, score: model.MaxSim(queryMatrix, l.Matrix)})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	filtered := make([]Result, 0, len(results))
	for _, s := range results {
		if s.score < params.MinScore {
			continue
		}
		md := all[s.id]
		filtered = append(filtered, Result{
			Score:        s.score,
			ShortDocID:   identity.ShortID(s.id, 6),
			NumericDocID: s.id,
			Collection:   md.Collection,
			Path:         md.RelativePath,
		})
	}

	limit := len(filtered)
	if !params.All && params.Count < limit {
		limit = params.Count
	}
	filtered = filtered[:limit]
	for i := range filtered {
		filtered[i].Rank = i + 1
		filtered[i].Title = p.lazyTitle(filtered[i].Collection, filtered[i].Path)
	}
	return filtered, nil
}

// lazyTitle reads a result's file from disk to extract its title, matching
// the original's "populate_titles" step: SemanticPipeline's candidate set
// has no body text in hand, so the title isn't known until this point.
func (p *Pipeline) lazyTitle(collection, path string) string {
	fallback := walker.ExtractTitle("", path)
	if p.roots == nil {
		return fallback
	}
	root, ok := p.roots(collection)
	if !ok {
		return fallback
	}
	content, err := os.ReadFile(filepath.Join(root, path))
	if err != nil || len(content) == 0 {
		return fallback
	}
	return walker.ExtractTitle(string(content), path)
}

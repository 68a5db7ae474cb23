// Package mcpserver exposes docbert's Orchestrator operations to AI agents
// over the Model Context Protocol, so a coding assistant can search, fetch,
// and inspect a docbert collection the same way the CLI does.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	docerrors "github.com/cfcosta/docbert/internal/errors"
	"github.com/cfcosta/docbert/internal/orchestrator"
	"github.com/cfcosta/docbert/internal/search"
	"github.com/cfcosta/docbert/pkg/version"
)

// Server bridges an MCP client session to a docbert Orchestrator.
type Server struct {
	mcp          *mcp.Server
	orchestrator *orchestrator.Orchestrator
}

// New builds an MCP server exposing search, semantic_search, get, and
// status as tools over orch. It registers all tools before returning so
// Run can immediately serve a session.
func New(orch *orchestrator.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}

	s := &Server{orchestrator: orch}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "docbert",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run serves the given transport until the client disconnects or ctx is
// canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string  `json:"query" jsonschema:"the search query to execute"`
	Count      int     `json:"count,omitempty" jsonschema:"maximum number of results, default 10"`
	Collection string  `json:"collection,omitempty" jsonschema:"restrict the search to one collection"`
	MinScore   float64 `json:"min_score,omitempty" jsonschema:"drop results scoring below this threshold"`
	BM25Only   bool    `json:"bm25_only,omitempty" jsonschema:"skip ColBERT reranking and return lexical order"`
	NoFuzzy    bool    `json:"no_fuzzy,omitempty" jsonschema:"disable fuzzy term matching in the lexical stage"`
}

// SemanticSearchInput is the input schema for the semantic_search tool.
type SemanticSearchInput struct {
	Query    string  `json:"query" jsonschema:"the search query to execute"`
	Count    int     `json:"count,omitempty" jsonschema:"maximum number of results, default 10"`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"drop results scoring below this threshold"`
}

// SearchOutput is the output schema shared by search and semantic_search.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked search results"`
}

// SearchResultOutput is a single ranked result.
type SearchResultOutput struct {
	Rank       int     `json:"rank" jsonschema:"1-based rank among returned results"`
	Score      float64 `json:"score" jsonschema:"relevance score; MaxSim unless bm25_only was set"`
	Collection string  `json:"collection" jsonschema:"collection the document belongs to"`
	Path       string  `json:"path" jsonschema:"path relative to the collection root"`
	Title      string  `json:"title" jsonschema:"document title"`
	DocID      string  `json:"doc_id" jsonschema:"short hex reference usable with the get tool, e.g. #a1b2c3"`
}

// GetInput is the input schema for the get tool.
type GetInput struct {
	Ref string `json:"ref" jsonschema:"a short ID (#a1b2c3), collection:path, or bare path"`
}

// GetOutput is the output schema for the get tool.
type GetOutput struct {
	DocID      string `json:"doc_id" jsonschema:"short hex reference"`
	Collection string `json:"collection" jsonschema:"collection the document belongs to"`
	Path       string `json:"path" jsonschema:"path relative to the collection root"`
	Title      string `json:"title" jsonschema:"document title"`
	Content    string `json:"content" jsonschema:"full document text"`
}

// StatusInput is the (empty) input schema for the status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	ModelName       string                     `json:"model_name" jsonschema:"persisted model_name setting; empty if it was never set"`
	EmbeddingModel  string                     `json:"embedding_model" jsonschema:"model ID stored embeddings were produced with"`
	EmbeddingsMatch bool                       `json:"embeddings_match" jsonschema:"false if the active model differs from the stored embeddings"`
	Collections     map[string]CollectionCount `json:"collections" jsonschema:"per-collection document counts"`
}

// CollectionCount is one collection's contribution to StatusOutput.
type CollectionCount struct {
	Path          string `json:"path" jsonschema:"absolute path the collection was added from"`
	DocumentCount int    `json:"document_count" jsonschema:"number of indexed documents"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed collections with hybrid BM25 lexical retrieval plus ColBERT late-interaction reranking. Use this for most lookups against synced documentation collections.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Exhaustive MaxSim search over every indexed document, ignoring lexical term overlap. Slower than search but finds paraphrased matches that share no keywords with the query.",
	}, s.semanticSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get",
		Description: "Fetch a document's full text by short ID, collection:path, or bare path. Use the doc_id field returned by search.",
	}, s.getHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "status",
		Description: "Report per-collection document counts and whether stored embeddings match the active encoder model. Call before relying on search results after a model change.",
	}, s.statusHandler)
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, newInvalidParamsError("query is required")
	}

	count := input.Count
	if count <= 0 {
		count = 10
	}

	results, err := s.orchestrator.Search(ctx, search.Params{
		Query:      input.Query,
		Count:      count,
		Collection: input.Collection,
		MinScore:   input.MinScore,
		BM25Only:   input.BM25Only,
		NoFuzzy:    input.NoFuzzy,
	})
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}

	return nil, toSearchOutput(results), nil
}

func (s *Server) semanticSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SemanticSearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, newInvalidParamsError("query is required")
	}

	count := input.Count
	if count <= 0 {
		count = 10
	}

	results, err := s.orchestrator.SemanticSearch(ctx, search.SemanticParams{
		Query:    input.Query,
		Count:    count,
		MinScore: input.MinScore,
	})
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}

	return nil, toSearchOutput(results), nil
}

func (s *Server) getHandler(_ context.Context, _ *mcp.CallToolRequest, input GetInput) (
	*mcp.CallToolResult,
	GetOutput,
	error,
) {
	if input.Ref == "" {
		return nil, GetOutput{}, newInvalidParamsError("ref is required")
	}

	doc, err := s.orchestrator.Get(input.Ref)
	if err != nil {
		return nil, GetOutput{}, mapError(err)
	}

	return nil, GetOutput{
		DocID:      doc.ShortID,
		Collection: doc.Collection,
		Path:       doc.RelativePath,
		Title:      doc.Title,
		Content:    doc.Content,
	}, nil
}

func (s *Server) statusHandler(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	status, err := s.orchestrator.Status()
	if err != nil {
		return nil, StatusOutput{}, mapError(err)
	}

	out := StatusOutput{
		ModelName:       status.ModelName,
		EmbeddingModel:  status.EmbeddingModel,
		EmbeddingsMatch: status.EmbeddingsMatch,
		Collections:     make(map[string]CollectionCount, len(status.Collections)),
	}
	for name, c := range status.Collections {
		out.Collections[name] = CollectionCount{Path: c.Path, DocumentCount: c.DocumentCount}
	}
	return nil, out, nil
}

func toSearchOutput(results []search.Result) SearchOutput {
	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultOutput{
			Rank:       r.Rank,
			Score:      r.Score,
			Collection: r.Collection,
			Path:       r.Path,
			Title:      r.Title,
			DocID:      "#" + r.ShortDocID,
		})
	}
	return out
}

// mcpError is a JSON-RPC style error carrying an MCP error code, grounded
// on the teacher's MCPError/MapError pattern but driven off docerrors.Kind
// instead of a parallel sentinel-error table.
type mcpError struct {
	code    int
	message string
}

func (e *mcpError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.code, e.message)
}

const (
	errCodeInvalidParams = -32602
	errCodeNotFound      = -32001
	errCodeInternal      = -32603
)

func newInvalidParamsError(msg string) *mcpError {
	return &mcpError{code: errCodeInvalidParams, message: msg}
}

// mapError converts an Orchestrator error into an MCP-surfaced error,
// preserving the not-found/internal distinction agents need to decide
// whether to retry with a different reference.
func mapError(err error) *mcpError {
	if err == nil {
		return nil
	}
	if docerrors.IsNotFound(err) {
		return &mcpError{code: errCodeNotFound, message: err.Error()}
	}
	return &mcpError{code: errCodeInternal, message: err.Error()}
}

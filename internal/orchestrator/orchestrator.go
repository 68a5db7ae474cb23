// Package orchestrator implements docbert's public operations: the coarse,
// single-step verbs (collection_add, sync, rebuild, search, ...) that sit
// above the Walker, Differ, Indexer, and search.Pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cfcosta/docbert/internal/diff"
	docerrors "github.com/cfcosta/docbert/internal/errors"
	"github.com/cfcosta/docbert/internal/fulltext"
	"github.com/cfcosta/docbert/internal/identity"
	"github.com/cfcosta/docbert/internal/index"
	"github.com/cfcosta/docbert/internal/model"
	"github.com/cfcosta/docbert/internal/search"
	"github.com/cfcosta/docbert/internal/store"
	"github.com/cfcosta/docbert/internal/walker"
)

const (
	settingModelName      = "model_name"
	settingEmbeddingModel = "embedding_model"
)

// Orchestrator wires the three durable stores, the ModelFacade, and the
// Indexer/search.Pipeline into the operations users actually invoke.
type Orchestrator struct {
	fulltext   *fulltext.Index
	embeddings store.EmbeddingStore
	metadata   store.MetadataStore
	model      *model.Facade
	indexer    *index.Indexer
	pipeline   *search.Pipeline
}

// New builds an Orchestrator over already-opened stores and a ModelFacade.
// chunkSize/overlap/embedBatch configure the Indexer; candidateLimit/
// semanticBatch configure the search Pipeline (Config.Search.CandidateCap/
// SemanticBatch).
func New(ft *fulltext.Index, embeddings store.EmbeddingStore, metadata store.MetadataStore, mf *model.Facade, chunkSize, overlap, embedBatch, candidateLimit, semanticBatch int) *Orchestrator {
	ix := index.New(ft, embeddings, metadata, mf, chunkSize, overlap, embedBatch)
	roots := func(collection string) (string, bool) {
		path, ok, err := metadata.GetCollection(collection)
		if err != nil || !ok {
			return "", false
		}
		return path, true
	}
	pipeline := search.New(ft, embeddings, metadata, mf, roots, candidateLimit, semanticBatch)
	return &Orchestrator{fulltext: ft, embeddings: embeddings, metadata: metadata, model: mf, indexer: ix, pipeline: pipeline}
}

// CollectionAdd registers a new collection. The path must exist and be a
// directory; names must be unique.
func (o *Orchestrator) CollectionAdd(name, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return docerrors.IOErrorf(docerrors.CodeIORead, "collection path %s: %v", path, err)
	}
	if !info.IsDir() {
		return docerrors.ConfigErrorf(docerrors.CodeConfigInvalid, "collection path %s is not a directory", path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return docerrors.IOErrorf(docerrors.CodeIORead, "resolving absolute path for %s: %v", path, err)
	}

	if _, exists, err := o.metadata.GetCollection(name); err != nil {
		return err
	} else if exists {
		return docerrors.ConfigErrorf(docerrors.CodeConfigInvalid, "collection %q already exists", name)
	}

	return o.metadata.SetCollection(name, absPath)
}

// CollectionRemove purges a collection's state: its FullTextIndex entries,
// EmbeddingStore entries, MetadataStore document records, and finally the
// collection record itself.
func (o *Orchestrator) CollectionRemove(name string) error {
	if _, exists, err := o.metadata.GetCollection(name); err != nil {
		return err
	} else if !exists {
		return docerrors.NotFound("collection", name)
	}

	if err := index.Remove(o.fulltext, o.embeddings, o.metadata, name); err != nil {
		return err
	}

	if _, err := o.metadata.RemoveCollection(name); err != nil {
		return err
	}
	return nil
}

// Sync walks each target collection, diffs it against stored metadata,
// removes deleted documents, and reindexes new/changed ones. It refuses to
// run if a persisted embedding_model setting disagrees with the model
// currently in use — the embeddings on disk would no longer be comparable
// to a freshly encoded query.
func (o *Orchestrator) Sync(ctx context.Context, collection string) (SyncResult, error) {
	if err := o.guardModelMatch(); err != nil {
		return SyncResult{}, err
	}

	collections, err := o.targetCollections(collection)
	if err != nil {
		return SyncResult{}, err
	}

	var total SyncResult
	for name, path := range collections {
		discovered, err := walker.Discover(path)
		if err != nil {
			return total, err
		}

		d, err := diff.Diff(o.metadata, name, discovered)
		if err != nil {
			return total, err
		}

		if len(d.DeletedIDs) > 0 {
			if err := o.embeddings.BatchRemove(d.DeletedIDs); err != nil {
				return total, err
			}
			if err := o.metadata.BatchRemoveDocumentMetadata(d.DeletedIDs); err != nil {
				return total, err
			}
			for _, id := range d.DeletedIDs {
				_ = o.fulltext.DeleteByShortID(identity.ShortID(id, 6))
			}
		}

		toIndex := append(append([]walker.DiscoveredFile{}, d.New...), d.Changed...)
		indexed, err := o.indexer.Index(ctx, name, toIndex)
		if err != nil {
			return total, err
		}

		total.New += len(d.New)
		total.Changed += len(d.Changed)
		total.Deleted += len(d.DeletedIDs)
		total.Indexed += indexed
	}

	return total, nil
}

// SyncResult summarizes one Sync call across all target collections.
type SyncResult struct {
	New     int
	Changed int
	Deleted int
	Indexed int
}

// Rebuild purges and fully re-ingests each target collection, then records
// the current model as the embedding model of record. embeddingsOnly skips
// purging the FullTextIndex and indexOnly skips purging the EmbeddingStore;
// document metadata is always purged, and the re-ingest that follows writes
// all three stores whichever flags are set.
func (o *Orchestrator) Rebuild(ctx context.Context, collection string, embeddingsOnly, indexOnly bool) error {
	collections, err := o.targetCollections(collection)
	if err != nil {
		return err
	}

	for name, path := range collections {
		if !embeddingsOnly {
			if err := o.fulltext.DeleteByCollection(name); err != nil {
				return err
			}
		}

		all, err := o.metadata.ListDocumentMetadata()
		if err != nil {
			return err
		}
		var ids []uint64
		for id, md := range all {
			if md.Collection == name {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 && !indexOnly {
			if err := o.embeddings.BatchRemove(ids); err != nil {
				return err
			}
		}
		if len(ids) > 0 {
			if err := o.metadata.BatchRemoveDocumentMetadata(ids); err != nil {
				return err
			}
		}

		discovered, err := walker.Discover(path)
		if err != nil {
			return err
		}
		if _, err := o.indexer.Index(ctx, name, discovered); err != nil {
			return err
		}
	}

	return o.metadata.SetSetting(settingEmbeddingModel, o.model.ModelID())
}

func (o *Orchestrator) guardModelMatch() error {
	recorded, ok, err := o.metadata.GetSetting(settingEmbeddingModel)
	if err != nil {
		return err
	}
	if ok && recorded != o.model.ModelID() {
		return docerrors.ConfigErrorf(docerrors.CodeConfigEmbeddingMismatch,
			"stored embeddings were produced by %q but the active model is %q; run rebuild", recorded, o.model.ModelID())
	}
	return nil
}

func (o *Orchestrator) targetCollections(name string) (map[string]string, error) {
	all, err := o.metadata.ListCollections()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return all, nil
	}
	path, ok := all[name]
	if !ok {
		return nil, docerrors.NotFound("collection", name)
	}
	return map[string]string{name: path}, nil
}

// Search runs the hybrid BM25 + ColBERT pipeline.
func (o *Orchestrator) Search(ctx context.Context, params search.Params) ([]search.Result, error) {
	return o.pipeline.Search(ctx, params)
}

// SemanticSearch runs the exhaustive MaxSim pipeline over every document.
func (o *Orchestrator) SemanticSearch(ctx context.Context, params search.SemanticParams) ([]search.Result, error) {
	return o.pipeline.Semantic(ctx, params)
}

// Document is the full content + metadata for a single resolved reference.
type Document struct {
	ShortID      string
	NumericID    uint64
	Collection   string
	RelativePath string
	Title        string
	Content      string
}

// Get resolves a document reference and returns its full content. ref may
// be a short hex ID prefixed with "#", a "<collection>:<relative_path>"
// pair, or a bare relative path (resolved against every collection).
func (o *Orchestrator) Get(ref string) (Document, error) {
	collection, relativePath, err := o.resolveReference(ref)
	if err != nil {
		return Document{}, err
	}
	return o.loadDocument(collection, relativePath)
}

// MultiGet resolves every reference in refs independently; a failure on
// one reference does not abort the others.
func (o *Orchestrator) MultiGet(refs []string) ([]Document, []error) {
	docs := make([]Document, 0, len(refs))
	var errs []error
	for _, ref := range refs {
		doc, err := o.Get(ref)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

func (o *Orchestrator) loadDocument(collection, relativePath string) (Document, error) {
	path, ok, err := o.metadata.GetCollection(collection)
	if err != nil {
		return Document{}, err
	}
	if !ok {
		return Document{}, docerrors.NotFound("collection", collection)
	}

	content, err := os.ReadFile(filepath.Join(path, relativePath))
	if err != nil {
		return Document{}, docerrors.IOErrorf(docerrors.CodeIORead, "reading %s/%s: %v", collection, relativePath, err)
	}

	docID := identity.NewDocID(collection, relativePath)
	return Document{
		ShortID:      docID.Short,
		NumericID:    docID.Numeric,
		Collection:   collection,
		RelativePath: relativePath,
		Title:        walker.ExtractTitle(string(content), relativePath),
		Content:      string(content),
	}, nil
}

// resolveReference implements the three reference forms: "#<shorthex>",
// "<collection>:<relative_path>", and a bare relative path matched across
// every registered collection.
func (o *Orchestrator) resolveReference(ref string) (collection, relativePath string, err error) {
	if shortID, ok := strings.CutPrefix(ref, "#"); ok {
		return o.resolveByShortID(shortID)
	}
	if collection, path, ok := strings.Cut(ref, ":"); ok {
		if _, exists, err := o.metadata.GetCollection(collection); err != nil {
			return "", "", err
		} else if exists {
			return collection, path, nil
		}
	}
	return o.resolveByPath(ref)
}

func (o *Orchestrator) resolveByShortID(shortID string) (string, string, error) {
	all, err := o.metadata.ListDocumentMetadata()
	if err != nil {
		return "", "", err
	}
	for id, md := range all {
		full := strconv.FormatUint(id, 16)
		full = strings.Repeat("0", 16-len(full)) + full
		if strings.HasPrefix(full, shortID) {
			return md.Collection, md.RelativePath, nil
		}
	}
	return "", "", docerrors.NotFound("document", "#"+shortID)
}

func (o *Orchestrator) resolveByPath(path string) (string, string, error) {
	all, err := o.metadata.ListDocumentMetadata()
	if err != nil {
		return "", "", err
	}
	for _, md := range all {
		if md.RelativePath == path {
			return md.Collection, md.RelativePath, nil
		}
	}
	return "", "", docerrors.NotFound("document", path)
}

// Status is a snapshot of docbert's current state: per-collection document
// counts and the model settings that govern reranking.
type Status struct {
	Collections     map[string]CollectionStatus
	ModelName       string
	EmbeddingModel  string
	EmbeddingsMatch bool
}

// CollectionStatus is one collection's contribution to Status.
type CollectionStatus struct {
	Path          string
	DocumentCount int
}

// Status reports per-collection document counts and the model settings
// governing search.
func (o *Orchestrator) Status() (Status, error) {
	collections, err := o.metadata.ListCollections()
	if err != nil {
		return Status{}, err
	}

	counts := make(map[string]int, len(collections))
	all, err := o.metadata.ListDocumentMetadata()
	if err != nil {
		return Status{}, err
	}
	for _, md := range all {
		counts[md.Collection]++
	}

	result := Status{Collections: make(map[string]CollectionStatus, len(collections))}
	for name, path := range collections {
		result.Collections[name] = CollectionStatus{Path: path, DocumentCount: counts[name]}
	}

	modelName, _, err := o.metadata.GetSetting(settingModelName)
	if err != nil {
		return Status{}, err
	}
	embeddingModel, _, err := o.metadata.GetSetting(settingEmbeddingModel)
	if err != nil {
		return Status{}, err
	}

	result.ModelName = modelName
	result.EmbeddingModel = embeddingModel
	result.EmbeddingsMatch = embeddingModel == "" || embeddingModel == o.model.ModelID()
	return result, nil
}

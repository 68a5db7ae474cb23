// Package index implements the Indexer: the pipeline that turns a batch of
// discovered files into lexical entries, chunk embeddings, and persisted
// document metadata.
package index

import (
	"context"

	"github.com/cfcosta/docbert/internal/chunk"
	docerrors "github.com/cfcosta/docbert/internal/errors"
	"github.com/cfcosta/docbert/internal/fulltext"
	"github.com/cfcosta/docbert/internal/identity"
	"github.com/cfcosta/docbert/internal/model"
	"github.com/cfcosta/docbert/internal/store"
	"github.com/cfcosta/docbert/internal/walker"
)

// DefaultEmbedBatch is how many chunks are sent to the encoder per HTTP
// call, following the default in the chunking/embedding design.
const DefaultEmbedBatch = 32

// Indexer drives the full-text + embedding ingestion pipeline for one
// collection at a time. It holds no per-collection state: every method
// takes the collection name explicitly.
type Indexer struct {
	fulltext   *fulltext.Index
	embeddings store.EmbeddingStore
	metadata   store.MetadataStore
	model      *model.Facade

	chunkSize  int
	overlap    int
	embedBatch int
}

// New builds an Indexer. chunkSize/overlap configure the Chunker;
// embedBatch configures how many chunks are embedded per ModelFacade call
// (DefaultEmbedBatch if non-positive).
func New(ft *fulltext.Index, embeddings store.EmbeddingStore, metadata store.MetadataStore, mf *model.Facade, chunkSize, overlap, embedBatch int) *Indexer {
	if embedBatch <= 0 {
		embedBatch = DefaultEmbedBatch
	}
	return &Indexer{
		fulltext:   ft,
		embeddings: embeddings,
		metadata:   metadata,
		model:      mf,
		chunkSize:  chunkSize,
		overlap:    overlap,
		embedBatch: embedBatch,
	}
}

// pendingChunk is a chunk awaiting embedding, carrying its destination ID.
type pendingChunk struct {
	id   uint64
	text string
}

// Index loads files, writes each as a single lexical entry, chunks and
// embeds their content, and persists document metadata — in that order, so
// a crash partway through never leaves a metadata record whose document
// isn't already searchable lexically.
func (ix *Indexer) Index(ctx context.Context, collection string, files []walker.DiscoveredFile) (int, error) {
	loaded, err := walker.Load(ctx, files)
	if err != nil {
		return 0, err
	}
	if len(loaded) == 0 {
		return 0, nil
	}

	var pending []pendingChunk
	metadataEntries := make(map[uint64]store.DocumentMetadata, len(loaded))

	for _, lf := range loaded {
		docID := identity.NewDocID(collection, lf.RelativePath)

		if err := ix.fulltext.Add(docID.Short, docID.Numeric, collection, lf.RelativePath, lf.Title, lf.Content, lf.MTime); err != nil {
			return 0, err
		}

		for _, c := range chunk.Split(lf.Content, ix.chunkSize, ix.overlap) {
			pending = append(pending, pendingChunk{
				id:   identity.ChunkID(docID.Numeric, uint16(c.Index)),
				text: c.Text,
			})
		}

		metadataEntries[docID.Numeric] = store.DocumentMetadata{
			Collection:   collection,
			RelativePath: lf.RelativePath,
			MTime:        lf.MTime,
		}
	}

	if err := ix.embedAndStore(ctx, pending); err != nil {
		return 0, err
	}

	if err := ix.metadata.BatchSetDocumentMetadata(metadataEntries); err != nil {
		return 0, err
	}

	return len(loaded), nil
}

func (ix *Indexer) embedAndStore(ctx context.Context, pending []pendingChunk) error {
	for start := 0; start < len(pending); start += ix.embedBatch {
		end := start + ix.embedBatch
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.text
		}

		matrices, err := ix.model.EncodeDocuments(ctx, texts)
		if err != nil {
			return err
		}
		if len(matrices) != len(batch) {
			return docerrors.ModelErrorf(docerrors.CodeModelEncode, nil, "encoder returned %d matrices for %d chunks", len(matrices), len(batch))
		}

		entries := make(map[uint64]store.Matrix, len(batch))
		for i, p := range batch {
			entries[p.id] = matrices[i]
		}
		if err := ix.embeddings.BatchStore(entries); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes a collection's documents from all three stores: the
// FullTextIndex by collection filter, then every chunk embedding of the
// collection's documents, then MetadataStore by the numeric IDs recorded
// for that collection.
func Remove(ft *fulltext.Index, embeddings store.EmbeddingStore, metadata store.MetadataStore, collection string) error {
	if err := ft.DeleteByCollection(collection); err != nil {
		return err
	}

	all, err := metadata.ListDocumentMetadata()
	if err != nil {
		return err
	}

	docs := make(map[uint64]bool)
	var ids []uint64
	for id, md := range all {
		if md.Collection == collection {
			ids = append(ids, id)
			docs[id&(1<<48-1)] = true
		}
	}
	if len(ids) == 0 {
		return nil
	}

	// Chunk IDs share their document ID's low 48 bits (identity.ChunkID).
	stored, err := embeddings.ListIDs()
	if err != nil {
		return err
	}
	var chunkIDs []uint64
	for _, id := range stored {
		if docs[id&(1<<48-1)] {
			chunkIDs = append(chunkIDs, id)
		}
	}
	if err := embeddings.BatchRemove(chunkIDs); err != nil {
		return err
	}
	return metadata.BatchRemoveDocumentMetadata(ids)
}

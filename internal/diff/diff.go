// Package diff compares freshly discovered files against previously stored
// document metadata to classify each path as new, changed, or deleted.
package diff

import (
	"github.com/cfcosta/docbert/internal/store"
	"github.com/cfcosta/docbert/internal/walker"
)

// Result classifies a collection's discovered files against what's already
// recorded in the MetadataStore.
type Result struct {
	// New are files with no prior metadata record.
	New []walker.DiscoveredFile
	// Changed are files whose mtime differs from the stored record.
	Changed []walker.DiscoveredFile
	// DeletedIDs are numeric document IDs recorded for this collection that
	// no longer correspond to a discovered file.
	DeletedIDs []uint64
}

// Diff compares discovered against collection's stored document metadata.
// Files whose stored mtime matches are omitted from both New and Changed:
// they need no reindexing.
func Diff(metadata store.MetadataStore, collection string, discovered []walker.DiscoveredFile) (Result, error) {
	all, err := metadata.ListDocumentMetadata()
	if err != nil {
		return Result{}, err
	}

	type known struct {
		id    uint64
		mtime uint64
	}
	knownByPath := make(map[string]known)
	for id, md := range all {
		if md.Collection != collection {
			continue
		}
		knownByPath[md.RelativePath] = known{id: id, mtime: md.MTime}
	}

	var result Result
	seen := make(map[string]bool, len(discovered))

	for _, f := range discovered {
		seen[f.RelativePath] = true
		k, ok := knownByPath[f.RelativePath]
		if !ok {
			result.New = append(result.New, f)
			continue
		}
		if f.MTime != k.mtime {
			result.Changed = append(result.Changed, f)
		}
	}

	for path, k := range knownByPath {
		if !seen[path] {
			result.DeletedIDs = append(result.DeletedIDs, k.id)
		}
	}

	return result, nil
}

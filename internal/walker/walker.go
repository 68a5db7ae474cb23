// Package walker discovers indexable document files under a collection root
// and loads their contents in parallel.
package walker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	docerrors "github.com/cfcosta/docbert/internal/errors"
)

// supportedExtensions are the file types docbert ingests. Document formats
// beyond plain text/Markdown are an explicit non-goal.
var supportedExtensions = map[string]bool{
	".md":  true,
	".txt": true,
}

// DiscoveredFile is one eligible file found under a collection root.
type DiscoveredFile struct {
	// RelativePath is relative to the collection root.
	RelativePath string
	// AbsolutePath is the fully resolved path.
	AbsolutePath string
	// MTime is the last modification time, seconds since the Unix epoch.
	MTime uint64
}

// Discover recursively walks root and returns every eligible file, sorted by
// relative path. Hidden files and directories (names starting with ".") are
// skipped, as are symlinks that are broken or that resolve to a directory
// inside root (cycle prevention).
func Discover(root string) ([]DiscoveredFile, error) {
	canonicalRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, docerrors.IOErrorf(docerrors.CodeIORead, "resolving collection root %s: %v", root, err)
	}
	canonicalRoot, err = filepath.Abs(canonicalRoot)
	if err != nil {
		return nil, docerrors.IOErrorf(docerrors.CodeIORead, "resolving collection root %s: %v", root, err)
	}

	var results []DiscoveredFile
	if err := walkDir(canonicalRoot, canonicalRoot, &results); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].RelativePath < results[j].RelativePath
	})
	return results, nil
}

func walkDir(root, current string, results *[]DiscoveredFile) error {
	entries, err := os.ReadDir(current)
	if err != nil {
		return docerrors.IOErrorf(docerrors.CodeIORead, "reading directory %s: %v", current, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		entryPath := filepath.Join(current, name)

		if entry.Type()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(entryPath)
			if err != nil {
				continue // broken symlink
			}
			info, err := os.Stat(resolved)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if withinRoot(root, resolved) {
					continue // cycle back into the tree being walked
				}
				if err := walkDir(root, resolved, results); err != nil {
					return err
				}
				continue
			}
			if isSupported(resolved) {
				appendDiscovered(root, entryPath, resolved, info, results)
			}
			continue
		}

		if entry.IsDir() {
			if err := walkDir(root, entryPath, results); err != nil {
				return err
			}
			continue
		}

		if isSupported(entryPath) {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			appendDiscovered(root, entryPath, entryPath, info, results)
		}
	}

	return nil
}

func withinRoot(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

func isSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

func appendDiscovered(root, originalPath, absolutePath string, info os.FileInfo, results *[]DiscoveredFile) {
	rel, err := filepath.Rel(root, originalPath)
	if err != nil {
		rel = originalPath
	}
	*results = append(*results, DiscoveredFile{
		RelativePath: rel,
		AbsolutePath: absolutePath,
		MTime:        uint64(info.ModTime().Unix()),
	})
}

// LoadedFile is a discovered file with its content and extracted title.
type LoadedFile struct {
	DiscoveredFile
	Title   string
	Content string
}

// Load reads every file's content in parallel and extracts a title for
// each. Files that fail to read (removed mid-scan, permission denied) are
// skipped rather than failing the whole batch.
func Load(ctx context.Context, files []DiscoveredFile) ([]LoadedFile, error) {
	loaded := make([]LoadedFile, len(files))
	present := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			content, err := os.ReadFile(f.AbsolutePath)
			if err != nil {
				return nil // skip unreadable file
			}

			mu.Lock()
			loaded[i] = LoadedFile{
				DiscoveredFile: f,
				Title:          ExtractTitle(string(content), f.RelativePath),
				Content:        string(content),
			}
			present[i] = true
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, docerrors.IOErrorf(docerrors.CodeIORead, "loading files: %v", err)
	}

	result := make([]LoadedFile, 0, len(loaded))
	for i, ok := range present {
		if ok {
			result = append(result, loaded[i])
		}
	}
	return result, nil
}

// ExtractTitle returns the first markdown heading ("# Title") in content, or
// the file's name without extension, or "untitled" if even that's empty.
func ExtractTitle(content, relativePath string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if heading, ok := strings.CutPrefix(trimmed, "# "); ok {
			title := strings.TrimSpace(heading)
			if title != "" {
				return title
			}
		}
	}

	base := filepath.Base(relativePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return "untitled"
	}
	return stem
}

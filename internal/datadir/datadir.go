// Package datadir resolves docbert's data directory: the root under which
// the MetadataStore, EmbeddingStore, and FullTextIndex live. Resolution
// order is explicit override > DOCBERT_DATA_DIR environment variable > XDG
// data home, grounded on the original implementation's data_dir module.
package datadir

import (
	"os"
	"path/filepath"
)

const envDataDir = "DOCBERT_DATA_DIR"

// Resolve returns the data directory to use, given an optional explicit
// override (e.g. a --data-dir flag). It does not create the directory.
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(envDataDir); v != "" {
		return v
	}
	return filepath.Join(xdgDataHome(), "docbert")
}

// xdgDataHome returns $XDG_DATA_HOME, or ~/.local/share if unset.
func xdgDataHome() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".local", "share")
	}
	return filepath.Join(home, ".local", "share")
}

// Ensure creates dir if it doesn't exist.
func Ensure(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Paths holds the three stores' on-disk locations under a data directory,
// per the external interfaces layout.
type Paths struct {
	MetadataDB  string
	EmbeddingDB string
	FullTextDir string
}

// Layout returns the standard file layout for dir.
func Layout(dir string) Paths {
	return Paths{
		MetadataDB:  filepath.Join(dir, "config.db"),
		EmbeddingDB: filepath.Join(dir, "embeddings.db"),
		FullTextDir: filepath.Join(dir, "tantivy"),
	}
}

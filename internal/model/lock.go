package model

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	docerrors "github.com/cfcosta/docbert/internal/errors"
)

// loadLock is an advisory cross-process lock guarding the first health-check
// and warm-up of the encoder sidecar, so two docbert processes sharing a
// data directory don't race to launch it.
type loadLock struct {
	path string
	f    *flock.Flock
}

func newLoadLock(dataDir string) *loadLock {
	path := filepath.Join(dataDir, ".model.lock")
	return &loadLock{path: path, f: flock.New(path)}
}

// Lock blocks until the lock is acquired, creating the data directory if
// needed.
func (l *loadLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return docerrors.IOErrorf(docerrors.CodeIOMkdir, "creating model lock directory: %v", err)
	}
	if err := l.f.Lock(); err != nil {
		return docerrors.ModelErrorf(docerrors.CodeModelLoad, err, "acquiring model load lock")
	}
	return nil
}

// Unlock releases the lock. Safe to call even if Lock was never called.
func (l *loadLock) Unlock() error {
	if !l.f.Locked() {
		return nil
	}
	return l.f.Unlock()
}

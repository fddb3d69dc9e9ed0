package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Claimer reserves the state directory for a single run. Repositories that
// implement it keep two processes from writing the same stages at once.
type Claimer interface {
	Claim(runID string) (release func() error, err error)
}

// ClaimedError reports that another run holds the state directory.
type ClaimedError struct {
	Path  string
	RunID string
}

func (e *ClaimedError) Error() string {
	return fmt.Sprintf("engine: run %s holds %s (remove the file if that run is gone)", e.RunID, e.Path)
}

// LockPath is the claim file guarding the repository.
func (r *Repository) LockPath() string {
	return filepath.Join(filepath.Dir(r.path), "run.lock")
}

// Claim creates the lock file exclusively and records runID in it.
func (r *Repository) Claim(runID string) (func() error, error) {
	path := r.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("engine: ensure state dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			holder, _ := os.ReadFile(path)
			return nil, &ClaimedError{Path: path, RunID: strings.TrimSpace(string(holder))}
		}
		return nil, fmt.Errorf("engine: claim %s: %w", path, err)
	}
	_, werr := file.WriteString(runID + "\n")
	if cerr := file.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("engine: claim %s: %w", path, werr)
	}
	return func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("engine: release %s: %w", path, err)
		}
		return nil
	}, nil
}

package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store reads and writes named text artifacts inside directories. It is the
// only stateful resource the pipeline touches.
type Store interface {
	Read(dir, name string) (string, error)
	Write(dir, name, content string) error
	Exists(dir, name string) (bool, error)
	List(dir string) ([]string, error)
}

// FileStore persists artifacts on the local filesystem.
type FileStore struct {
	fileMode fs.FileMode
	dirMode  fs.FileMode
}

// StoreOption customizes a FileStore during construction.
type StoreOption func(*FileStore)

// WithFileMode overrides the permission bits of written artifacts.
func WithFileMode(mode fs.FileMode) StoreOption {
	return func(s *FileStore) {
		if mode != 0 {
			s.fileMode = mode
		}
	}
}

// WithDirMode overrides the permission bits of created directories.
func WithDirMode(mode fs.FileMode) StoreOption {
	return func(s *FileStore) {
		if mode != 0 {
			s.dirMode = mode
		}
	}
}

// NewFileStore builds a filesystem store.
func NewFileStore(opts ...StoreOption) *FileStore {
	store := &FileStore{
		fileMode: 0o644,
		dirMode:  0o755,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Read returns the artifact content.
func (s *FileStore) Read(dir, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &MissingArtifactError{Dir: dir, Name: name}
		}
		return "", &IOError{Op: "read", Path: path, Err: err}
	}
	return string(data), nil
}

// Write creates or replaces the artifact. Content is written to a temporary
// file in the same directory and renamed into place, so readers never observe
// a partial artifact. The temporary file is removed on any failure.
func (s *FileStore) Write(dir, name, content string) (err error) {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}
	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = tmp.Close()
		}
		_ = os.Remove(tmpPath)
	}()
	if _, err = tmp.WriteString(content); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &IOError{Op: "sync", Path: path, Err: err}
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	if err = os.Chmod(tmpPath, s.fileMode); err != nil {
		return &IOError{Op: "chmod", Path: path, Err: err}
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// Exists reports whether a regular file with the name is present.
func (s *FileStore) Exists(dir, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &IOError{Op: "stat", Path: path, Err: err}
	}
	if info.IsDir() {
		return false, &IOError{Op: "stat", Path: path, Err: fmt.Errorf("expected file got directory")}
	}
	return true, nil
}

// Version reports the file's modification time and size.
func (s *FileStore) Version(dir, name string) (Version, bool, error) {
	if err := validateName(name); err != nil {
		return Version{}, false, err
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Version{}, false, nil
		}
		return Version{}, false, &IOError{Op: "stat", Path: path, Err: err}
	}
	if info.IsDir() {
		return Version{}, false, &IOError{Op: "stat", Path: path, Err: fmt.Errorf("expected file got directory")}
	}
	return Version{ModTime: info.ModTime(), Size: info.Size()}, true, nil
}

// List returns the sorted names of regular files in dir. A missing directory
// lists as empty.
func (s *FileStore) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &IOError{Op: "list", Path: dir, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("artifact: name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("artifact: %q is not a bare filename", name)
	}
	return nil
}

package artifact

import (
	"path/filepath"
	"sort"
	"sync"
)

// MemoryStore keeps artifacts in process memory. It backs dry runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	dirs     map[string]map[string]string
	versions map[string]uint64
	seq      uint64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{dirs: map[string]map[string]string{}, versions: map[string]uint64{}}
}

func (s *MemoryStore) Read(dir, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.dirs[filepath.Clean(dir)][name]
	if !ok {
		return "", &MissingArtifactError{Dir: dir, Name: name}
	}
	return content, nil
}

func (s *MemoryStore) Write(dir, name, content string) error {
	if err := validateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := filepath.Clean(dir)
	files, ok := s.dirs[key]
	if !ok {
		files = map[string]string{}
		s.dirs[key] = files
	}
	files[name] = content
	s.seq++
	s.versions[filepath.Join(key, name)] = s.seq
	return nil
}

// Version reports the write sequence number of the artifact.
func (s *MemoryStore) Version(dir, name string) (Version, bool, error) {
	if err := validateName(name); err != nil {
		return Version{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := filepath.Clean(dir)
	content, ok := s.dirs[key][name]
	if !ok {
		return Version{}, false, nil
	}
	return Version{Size: int64(len(content)), Seq: s.versions[filepath.Join(key, name)]}, true, nil
}

func (s *MemoryStore) Exists(dir, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dirs[filepath.Clean(dir)][name]
	return ok, nil
}

func (s *MemoryStore) List(dir string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := s.dirs[filepath.Clean(dir)]
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Seed copies every regular file listed by src in dir into the memory store.
// Dry runs use it to stage real inputs without touching the filesystem.
func (s *MemoryStore) Seed(src Store, dir string) error {
	names, err := src.List(dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		content, err := src.Read(dir, name)
		if err != nil {
			return err
		}
		if err := s.Write(dir, name, content); err != nil {
			return err
		}
	}
	return nil
}

package artifact

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheEntries bounds the read cache when no size is given.
const DefaultCacheEntries = 1024

// CacheStats reports read cache effectiveness.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// Version identifies one revision of an artifact. Two reads returning the
// same Version return the same content.
type Version struct {
	ModTime time.Time
	Size    int64
	// Seq is a store-local write counter for stores without timestamps.
	Seq uint64
}

// Same reports whether both versions describe the same revision.
func (v Version) Same(other Version) bool {
	return v.Size == other.Size && v.Seq == other.Seq && v.ModTime.Equal(other.ModTime)
}

// Versioner is implemented by stores that can report an artifact's revision
// without reading it.
type Versioner interface {
	Version(dir, name string) (Version, bool, error)
}

type cacheEntry struct {
	content string
	version Version
}

// CachedStore fronts another Store with an LRU read cache. Writes go through
// to the origin and refresh the cached entry. When the origin is a Versioner,
// a cached entry is only served while the origin still reports the version it
// was read at, so edits and deletions made behind the store's back are seen.
// Exists always asks the origin.
type CachedStore struct {
	origin Store
	cache  *lru.Cache[string, cacheEntry]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedStore wraps origin with a cache holding up to size artifacts.
func NewCachedStore(origin Store, size int) (*CachedStore, error) {
	if origin == nil {
		return nil, fmt.Errorf("artifact: cached store requires an origin store")
	}
	if size <= 0 {
		size = DefaultCacheEntries
	}
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("artifact: build cache: %w", err)
	}
	return &CachedStore{origin: origin, cache: cache}, nil
}

func (s *CachedStore) Read(dir, name string) (string, error) {
	key := cacheKey(dir, name)
	version, ok, err := s.version(dir, name)
	if err != nil {
		return "", err
	}
	if !ok {
		s.cache.Remove(key)
		return "", &MissingArtifactError{Dir: dir, Name: name}
	}
	if entry, hit := s.cache.Get(key); hit && entry.version.Same(version) {
		s.hits.Add(1)
		return entry.content, nil
	}
	s.misses.Add(1)
	content, err := s.origin.Read(dir, name)
	if err != nil {
		s.cache.Remove(key)
		return "", err
	}
	s.cache.Add(key, cacheEntry{content: content, version: version})
	return content, nil
}

func (s *CachedStore) Write(dir, name, content string) error {
	key := cacheKey(dir, name)
	if err := s.origin.Write(dir, name, content); err != nil {
		s.cache.Remove(key)
		return err
	}
	version, ok, err := s.version(dir, name)
	if err != nil || !ok {
		s.cache.Remove(key)
		return nil
	}
	s.cache.Add(key, cacheEntry{content: content, version: version})
	return nil
}

func (s *CachedStore) Exists(dir, name string) (bool, error) {
	ok, err := s.origin.Exists(dir, name)
	if err == nil && !ok {
		s.cache.Remove(cacheKey(dir, name))
	}
	return ok, err
}

func (s *CachedStore) List(dir string) ([]string, error) {
	return s.origin.List(dir)
}

// Stats returns a snapshot of the hit and miss counters.
func (s *CachedStore) Stats() CacheStats {
	return CacheStats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}

// version asks a Versioner origin for the artifact's revision. Origins that
// cannot report one get a zero Version, which keeps cached entries valid
// until a write through this store replaces them.
func (s *CachedStore) version(dir, name string) (Version, bool, error) {
	v, ok := s.origin.(Versioner)
	if !ok {
		return Version{}, true, nil
	}
	return v.Version(dir, name)
}

func cacheKey(dir, name string) string {
	return filepath.Join(filepath.Clean(dir), name)
}

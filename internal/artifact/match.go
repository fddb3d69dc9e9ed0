package artifact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kingrea/storyforge/internal/hierarchy"
)

// Lister enumerates the names inside a directory.
type Lister interface {
	List(dir string) ([]string, error)
}

// Pattern selects the artifacts a stage reads: an optional glob pre-filter
// (e.g. "rundown_*.txt") plus the prefix and expected id depth the codec
// decodes against.
type Pattern struct {
	Glob   string
	Prefix string
	Depth  int
}

// Validate reports malformed patterns.
func (p Pattern) Validate() error {
	if strings.TrimSpace(p.Prefix) == "" {
		return fmt.Errorf("artifact: pattern prefix is required")
	}
	if p.Depth < 1 {
		return fmt.Errorf("artifact: pattern depth must be >= 1 for %s", p.Prefix)
	}
	if p.Glob != "" && !doublestar.ValidatePattern(p.Glob) {
		return fmt.Errorf("artifact: invalid glob %q", p.Glob)
	}
	return nil
}

// Entry is one matched artifact.
type Entry struct {
	ID   hierarchy.ID
	Name string
}

// Match lists dir and returns the entries that decode against the pattern,
// ordered by lexicographic id order. That order is the depth-first traversal
// of the expansion tree and downstream merges rely on it. Two entries with the
// same id fail with DuplicateArtifactError.
func Match(lister Lister, dir string, pattern Pattern, codec hierarchy.Codec) ([]Entry, error) {
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	names, err := lister.List(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		if pattern.Glob != "" {
			ok, err := doublestar.Match(pattern.Glob, name)
			if err != nil {
				return nil, fmt.Errorf("artifact: match %q: %w", pattern.Glob, err)
			}
			if !ok {
				continue
			}
		}
		id, ok := codec.Decode(name, pattern.Prefix, pattern.Depth)
		if !ok {
			continue
		}
		entries = append(entries, Entry{ID: id, Name: name})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ID.Compare(entries[j].ID) < 0
	})
	for i := 1; i < len(entries); i++ {
		if entries[i].ID.Equal(entries[i-1].ID) {
			return nil, &DuplicateArtifactError{
				Dir:   dir,
				ID:    entries[i].ID.Clone(),
				Names: []string{entries[i-1].Name, entries[i].Name},
			}
		}
	}
	return entries, nil
}

package artifact

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/kingrea/storyforge/internal/hierarchy"
)

type fakeLister struct {
	names []string
}

func (f fakeLister) List(string) ([]string, error) {
	return append([]string{}, f.names...), nil
}

func TestMatchOrdersByIntegerSequence(t *testing.T) {
	names := []string{
		"scenes_10_01.txt",
		"scenes_02_10.txt",
		"scenes_02_02.txt",
		"scenes_01_01.txt",
		"scenes_02_01.txt",
		"scenes_prompt.txt",
		"rundown_01.txt",
		"scenes_03.txt",
	}
	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })

	entries, err := Match(fakeLister{names: names}, "dir", Pattern{Prefix: "scenes", Depth: 2}, hierarchy.DefaultCodec())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	want := []string{"1.1", "2.1", "2.2", "2.10", "10.1"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, entry := range entries {
		if entry.ID.String() != want[i] {
			t.Fatalf("entry %d = %s, want %s", i, entry.ID, want[i])
		}
	}
}

func TestMatchAppliesGlobPreFilter(t *testing.T) {
	lister := fakeLister{names: []string{"rundown_01.txt", "rundown_02.txt", "rundown_03.txt"}}
	entries, err := Match(lister, "dir", Pattern{Glob: "rundown_0[12].txt", Prefix: "rundown_", Depth: 1}, hierarchy.DefaultCodec())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(entries) != 2 || entries[1].Name != "rundown_02.txt" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestMatchDuplicateIDs(t *testing.T) {
	lister := fakeLister{names: []string{"beat_01.txt", "beat_01.txt"}}
	_, err := Match(lister, "dir", Pattern{Prefix: "beat", Depth: 1}, hierarchy.DefaultCodec())
	var dup *DuplicateArtifactError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateArtifactError, got %v", err)
	}
	if dup.ID.String() != "1" {
		t.Fatalf("duplicate id = %s", dup.ID)
	}
}

func TestMatchRejectsBadPattern(t *testing.T) {
	if _, err := Match(fakeLister{}, "dir", Pattern{Prefix: "beat", Depth: 0}, hierarchy.DefaultCodec()); err == nil {
		t.Fatalf("expected depth validation error")
	}
	if _, err := Match(fakeLister{}, "dir", Pattern{Glob: "beat_[", Prefix: "beat", Depth: 1}, hierarchy.DefaultCodec()); err == nil {
		t.Fatalf("expected glob validation error")
	}
}

func TestMatchOnFileStore(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore()
	for _, name := range []string{"sentence_02.txt", "sentence_01.txt", "notes.md"} {
		if err := store.Write(dir, name, name); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	entries, err := Match(store, dir, Pattern{Glob: "sentence_*.txt", Prefix: "sentence", Depth: 1}, hierarchy.DefaultCodec())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "sentence_01.txt" {
		t.Fatalf("entries = %+v", entries)
	}
}

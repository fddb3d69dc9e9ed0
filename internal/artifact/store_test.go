package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreWriteReadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "paragraph")
	store := NewFileStore()
	if err := store.Write(dir, "paragraph_01.txt", "It was a dark night."); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := store.Read(dir, "paragraph_01.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "It was a dark night." {
		t.Fatalf("content = %q", got)
	}
	ok, err := store.Exists(dir, "paragraph_01.txt")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}
}

func TestFileStoreOverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore()
	for _, body := range []string{"first", "second"} {
		if err := store.Write(dir, "draft_01.txt", body); err != nil {
			t.Fatalf("write %s: %v", body, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected single artifact, got %v", names)
	}
	got, _ := store.Read(dir, "draft_01.txt")
	if got != "second" {
		t.Fatalf("content = %q, want second", got)
	}
}

func TestFileStoreReadMissing(t *testing.T) {
	store := NewFileStore()
	_, err := store.Read(t.TempDir(), "scenes_01.txt")
	var missing *MissingArtifactError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingArtifactError, got %v", err)
	}
	if missing.Name != "scenes_01.txt" {
		t.Fatalf("missing name = %s", missing.Name)
	}
}

func TestFileStoreWriteFailureIsIOError(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := NewFileStore().Write(blocker, "scenes_01.txt", "body")
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
}

func TestFileStoreRejectsPaths(t *testing.T) {
	store := NewFileStore()
	if err := store.Write(t.TempDir(), "../escape.txt", "x"); err == nil {
		t.Fatalf("expected error for path traversal")
	}
}

func TestFileStoreListSkipsDirectoriesAndMissing(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore()
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"b_01.txt", "a_01.txt"} {
		if err := store.Write(dir, name, name); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	names, err := store.List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Join(names, ",") != "a_01.txt,b_01.txt" {
		t.Fatalf("names = %v", names)
	}
	names, err = store.List(filepath.Join(dir, "absent"))
	if err != nil || len(names) != 0 {
		t.Fatalf("missing dir list = %v, %v", names, err)
	}
}

func TestMemoryStoreMatchesFileStoreContract(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Read("out", "x_01.txt"); err == nil {
		t.Fatalf("expected missing error")
	}
	if err := store.Write("out/", "x_01.txt", "body"); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := store.Read("out", "x_01.txt")
	if err != nil || got != "body" {
		t.Fatalf("read = %q, %v", got, err)
	}
	names, _ := store.List("out")
	if len(names) != 1 || names[0] != "x_01.txt" {
		t.Fatalf("names = %v", names)
	}
}

func TestMemoryStoreSeed(t *testing.T) {
	dir := t.TempDir()
	files := NewFileStore()
	if err := files.Write(dir, "sentence_01.txt", "premise"); err != nil {
		t.Fatalf("write: %v", err)
	}
	mem := NewMemoryStore()
	if err := mem.Seed(files, dir); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := mem.Read(dir, "sentence_01.txt")
	if err != nil || got != "premise" {
		t.Fatalf("seeded read = %q, %v", got, err)
	}
}

func TestCachedStoreServesRepeatReadsFromCache(t *testing.T) {
	origin := NewMemoryStore()
	if err := origin.Write("dir", "a_01.txt", "v1"); err != nil {
		t.Fatalf("write: %v", err)
	}
	cached, err := NewCachedStore(origin, 4)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	for i := 0; i < 3; i++ {
		if got, err := cached.Read("dir", "a_01.txt"); err != nil || got != "v1" {
			t.Fatalf("read = %q, %v", got, err)
		}
	}
	stats := cached.Stats()
	if stats.Misses != 1 || stats.Hits != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if err := cached.Write("dir", "a_01.txt", "v2"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, _ := cached.Read("dir", "a_01.txt"); got != "v2" {
		t.Fatalf("expected write-through refresh, got %q", got)
	}
}

func TestDigestIsStable(t *testing.T) {
	a := Digest("scene one")
	if a != Digest("scene one") {
		t.Fatalf("digest not deterministic")
	}
	if a == Digest("scene two") {
		t.Fatalf("digest collision for different content")
	}
	if len(a) != 64 {
		t.Fatalf("digest length = %d, want 64", len(a))
	}
}

func TestArtifactValuesAreIndependent(t *testing.T) {
	base := New("rundown", []int{2}, "text")
	moved := base.WithID([]int{3})
	moved.ID[0] = 9
	if base.ID[0] != 2 {
		t.Fatalf("WithID aliased the original id")
	}
	if !New("x", []int{1}, " \n").Blank() {
		t.Fatalf("expected whitespace artifact to be blank")
	}
}

func TestCachedStoreNoticesChangesBehindIt(t *testing.T) {
	dir := t.TempDir()
	cached, err := NewCachedStore(NewFileStore(), 4)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if err := cached.Write(dir, "sentence_01.txt", "old"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, _ := cached.Read(dir, "sentence_01.txt"); got != "old" {
		t.Fatalf("read = %q", got)
	}

	path := filepath.Join(dir, "sentence_01.txt")
	if err := os.WriteFile(path, []byte("edited outside"), 0o644); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got, err := cached.Read(dir, "sentence_01.txt"); err != nil || got != "edited outside" {
		t.Fatalf("read after edit = %q, %v", got, err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ok, err := cached.Exists(dir, "sentence_01.txt"); err != nil || ok {
		t.Fatalf("exists after delete = %v, %v", ok, err)
	}
	_, err = cached.Read(dir, "sentence_01.txt")
	var missing *MissingArtifactError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingArtifactError after delete, got %v", err)
	}
}

func TestCachedStoreRevalidatesMemoryOrigin(t *testing.T) {
	origin := NewMemoryStore()
	cached, err := NewCachedStore(origin, 4)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if err := origin.Write("dir", "a_01.txt", "v1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := cached.Read("dir", "a_01.txt"); got != "v1" {
		t.Fatalf("read = %q", got)
	}
	if err := origin.Write("dir", "a_01.txt", "v2"); err != nil {
		t.Fatal(err)
	}
	if got, _ := cached.Read("dir", "a_01.txt"); got != "v2" {
		t.Fatalf("same-size rewrite served stale content %q", got)
	}
	if stats := cached.Stats(); stats.Misses != 2 || stats.Hits != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

package engine

import (
	"fmt"
	"path/filepath"

	"github.com/kingrea/storyforge/internal/artifact"
	"github.com/kingrea/storyforge/internal/stage"
)

// dryRun stages real inputs in memory so a run can be previewed without
// writing. Directories are copied once, on first use, so a later stage sees
// what an earlier stage produced during the same dry run.
type dryRun struct {
	origin artifact.Store
	mem    *artifact.MemoryStore
	seeded map[string]struct{}
}

func newDryRun(origin artifact.Store) *dryRun {
	return &dryRun{origin: origin, mem: artifact.NewMemoryStore(), seeded: map[string]struct{}{}}
}

func (d *dryRun) stage(def stage.Definition) error {
	for _, dir := range []string{def.SourceDir, def.DestDir} {
		key := filepath.Clean(dir)
		if _, done := d.seeded[key]; done {
			continue
		}
		if err := d.mem.Seed(d.origin, dir); err != nil {
			return fmt.Errorf("engine: dry run seed %s: %w", dir, err)
		}
		d.seeded[key] = struct{}{}
	}
	return nil
}

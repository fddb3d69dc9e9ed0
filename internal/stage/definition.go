// Package stage runs one configured pipeline stage: it resolves the stage's
// input artifacts, derives every output id and filename and dispatches the work
// as an expand, split or merge.
package stage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kingrea/storyforge/internal/artifact"
	"github.com/kingrea/storyforge/internal/hierarchy"
)

// DefaultJoiner separates merged siblings.
const DefaultJoiner = "\n\n"

// Definition describes a single stage. It is built once from configuration and
// treated as immutable afterwards.
type Definition struct {
	Name         string
	SourceDir    string
	DestDir      string
	InputGlob    string
	InputPrefix  string
	InputDepth   int
	OutputPrefix string
	Mode         Mode
	Width        int
	Joiner       string
	PromptPath   string
	Backend      string
	Splitter     string
	SplitBackend string
	Workers      int
}

// OutputDepth is the id depth of the artifacts the stage writes.
func (d Definition) OutputDepth() int {
	return d.InputDepth + d.Mode.DepthDelta()
}

// Codec returns the filename codec for the stage's padding width.
func (d Definition) Codec() hierarchy.Codec {
	return hierarchy.DefaultCodec().WithWidth(d.Width)
}

// InputPattern is the match pattern for the stage's inputs.
func (d Definition) InputPattern() artifact.Pattern {
	return artifact.Pattern{Glob: d.InputGlob, Prefix: d.InputPrefix, Depth: d.InputDepth}
}

// JoinerOrDefault returns the merge joiner, falling back to a blank line.
func (d Definition) JoinerOrDefault() string {
	if d.Joiner == "" {
		return DefaultJoiner
	}
	return d.Joiner
}

// Validate ensures the definition is well-formed.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("stage: name is required")
	}
	if strings.TrimSpace(d.SourceDir) == "" {
		return fmt.Errorf("stage: source directory is required for %s", d.Name)
	}
	if strings.TrimSpace(d.DestDir) == "" {
		return fmt.Errorf("stage: destination directory is required for %s", d.Name)
	}
	if !d.Mode.Valid() {
		return fmt.Errorf("stage: invalid mode %q for %s", d.Mode, d.Name)
	}
	codec := d.Codec()
	if codec.NormalizePrefix(d.OutputPrefix) == "" {
		return fmt.Errorf("stage: output prefix is required for %s", d.Name)
	}
	if err := d.InputPattern().Validate(); err != nil {
		return fmt.Errorf("stage %s: %w", d.Name, err)
	}
	if d.Mode == ModeMerge && d.InputDepth < 2 {
		return fmt.Errorf("stage: merge stage %s needs input depth >= 2, got %d", d.Name, d.InputDepth)
	}
	if d.Width < 0 {
		return fmt.Errorf("stage: width must be >= 0 for %s", d.Name)
	}
	if d.Workers < 0 {
		return fmt.Errorf("stage: workers must be >= 0 for %s", d.Name)
	}
	sameDir := filepath.Clean(d.SourceDir) == filepath.Clean(d.DestDir)
	samePrefix := codec.NormalizePrefix(d.InputPrefix) == codec.NormalizePrefix(d.OutputPrefix)
	if sameDir && samePrefix && d.Mode == ModeExpand {
		return fmt.Errorf("stage: %s would overwrite its own inputs", d.Name)
	}
	return nil
}

package stage

import (
	"fmt"
	"strings"

	"github.com/kingrea/storyforge/internal/hierarchy"
)

// EmptySplitError reports a splitter returning no chunks for non-blank input.
type EmptySplitError struct {
	Stage string
	ID    hierarchy.ID
}

func (e *EmptySplitError) Error() string {
	return fmt.Sprintf("stage %s: split of %s produced no chunks", e.Stage, e.ID)
}

// IncompleteGroupError reports a sibling group whose last components are not
// exactly 1..n.
type IncompleteGroupError struct {
	Stage   string
	Parent  hierarchy.ID
	Present []int
	Missing []int
}

func (e *IncompleteGroupError) Error() string {
	return fmt.Sprintf("stage %s: children of %s incomplete: have %s, missing %s",
		e.Stage, e.Parent, joinInts(e.Present), joinInts(e.Missing))
}

// FailedArtifactsError summarizes the per-artifact failures of a run.
type FailedArtifactsError struct {
	Stage  string
	Failed []Failure
}

func (e *FailedArtifactsError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, failure := range e.Failed {
		ids[i] = failure.ID.String()
	}
	return fmt.Sprintf("stage %s: %d artifact(s) failed: %s", e.Stage, len(e.Failed), strings.Join(ids, ", "))
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

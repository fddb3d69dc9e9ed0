// Package artifact owns the persisted text artifacts that stages exchange.
// Artifacts are plain text files with no embedded metadata; their position in
// the expansion tree lives entirely in the filename (see package hierarchy).

package artifact

import (
	"fmt"
	"strings"

	"github.com/kingrea/storyforge/internal/hierarchy"
)

// Artifact is an in-memory value object. Operations never mutate an Artifact
// in place; they return new values.
type Artifact struct {
	Stage   string
	ID      hierarchy.ID
	Content string
}

// New builds an artifact with its own copy of id.
func New(stage string, id hierarchy.ID, content string) Artifact {
	return Artifact{Stage: stage, ID: id.Clone(), Content: content}
}

// WithContent returns a copy of the artifact carrying new content.
func (a Artifact) WithContent(content string) Artifact {
	return New(a.Stage, a.ID, content)
}

// WithID returns a copy of the artifact relocated to id.
func (a Artifact) WithID(id hierarchy.ID) Artifact {
	return New(a.Stage, id, a.Content)
}

// Blank reports whether the content holds only whitespace.
func (a Artifact) Blank() bool {
	return strings.TrimSpace(a.Content) == ""
}

// MissingArtifactError is returned when a read targets an absent artifact.
type MissingArtifactError struct {
	Dir  string
	Name string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("artifact: %s not found in %s", e.Name, e.Dir)
}

// DuplicateArtifactError is returned when two entries in one directory decode
// to the same hierarchical id.
type DuplicateArtifactError struct {
	Dir   string
	ID    hierarchy.ID
	Names []string
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("artifact: duplicate id %s in %s (%s)", e.ID, e.Dir, strings.Join(e.Names, ", "))
}

// IOError wraps an underlying filesystem failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("artifact: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Package generate holds the text-generation collaborators that stages call:
// content generators, content splitters, the middleware that decorates them and
// the registry that builds them from configuration.
package generate

import (
	"context"
	"errors"
	"fmt"
)

// Request carries the per-call context a backend needs besides the content.
type Request struct {
	Stage  string
	ID     string
	Prompt string
}

// Generator turns source content into new content.
type Generator interface {
	Generate(ctx context.Context, content string, req Request) (string, error)
}

// Splitter cuts content into ordered chunks.
type Splitter interface {
	Split(ctx context.Context, content string, req Request) ([]string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, content string, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, content string, req Request) (string, error) {
	return f(ctx, content, req)
}

// SplitterFunc adapts a function to the Splitter interface.
type SplitterFunc func(ctx context.Context, content string, req Request) ([]string, error)

func (f SplitterFunc) Split(ctx context.Context, content string, req Request) ([]string, error) {
	return f(ctx, content, req)
}

// GenerationError reports a backend failure for one artifact.
type GenerationError struct {
	Backend string
	Stage   string
	ID      string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate: %s failed for %s %s: %v", e.Backend, e.Stage, e.ID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// TransientError marks a failure that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps err as retryable.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// PermanentError marks a failure that retries will not fix.
type PermanentError struct {
	err error
}

func (e *PermanentError) Error() string { return e.err.Error() }
func (e *PermanentError) Unwrap() error { return e.err }

// NewPermanentError wraps err as non-retryable.
func NewPermanentError(err error) error {
	return &PermanentError{err: err}
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsPermanent reports whether err is marked non-retryable.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}

package stage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/storyforge/internal/artifact"
	"github.com/kingrea/storyforge/internal/generate"
	"github.com/kingrea/storyforge/internal/hierarchy"
)

// DefaultWorkers bounds per-stage parallelism when neither the definition nor
// the run options set it.
const DefaultWorkers = 4

// Collaborators are the external capabilities a stage run consumes. Expand
// stages need a Generator, split stages a Splitter; merge needs neither.
type Collaborators struct {
	Generator generate.Generator
	Splitter  generate.Splitter
	Prompt    string
}

// RunOptions tune a single run.
type RunOptions struct {
	// Force regenerates outputs that already exist.
	Force bool
	// Workers overrides the definition's worker count when positive.
	Workers int
	// DryRun is copied onto the report; the caller supplies a scratch store.
	DryRun bool
}

// Runner executes stage definitions against an artifact store.
type Runner struct {
	store    artifact.Store
	observer Observer
	logger   *slog.Logger
	clock    func() time.Time
}

// Option customizes the runner.
type Option func(*Runner)

// WithObserver registers a progress observer.
func WithObserver(observer Observer) Option {
	return func(r *Runner) {
		r.observer = observer
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRunner wires a runner to the artifact store.
func NewRunner(store artifact.Store, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("stage: artifact store is required")
	}
	runner := &Runner{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Run executes def once. Per-artifact failures are collected in the report and
// do not abort the run; structural failures (duplicate ids, incomplete sibling
// groups, index overflow) and cancellation are returned as errors together
// with the partial report.
func (r *Runner) Run(ctx context.Context, def Definition, collab Collaborators, opts RunOptions) (Report, error) {
	report := Report{Stage: def.Name, Mode: def.Mode, DryRun: opts.DryRun, StartedAt: r.clock()}
	if err := def.Validate(); err != nil {
		return report, err
	}
	t := newTally(&report, r.observer)
	var err error
	switch def.Mode {
	case ModeExpand:
		if collab.Generator == nil {
			return report, fmt.Errorf("stage: expand stage %s requires a generator", def.Name)
		}
		err = r.expand(ctx, def, collab, opts, t)
	case ModeSplit:
		if collab.Splitter == nil {
			return report, fmt.Errorf("stage: split stage %s requires a splitter", def.Name)
		}
		err = r.split(ctx, def, collab, opts, t)
	case ModeMerge:
		err = r.merge(ctx, def, opts, t)
	}
	t.finish()
	report.FinishedAt = r.clock()
	final := report
	defer t.emit(Event{Stage: def.Name, Kind: EventFinished, Report: &final, Err: err})
	if err != nil {
		r.logger.Error("stage aborted", "stage", def.Name, "mode", def.Mode, "error", err)
		return report, fmt.Errorf("stage %s: %w", def.Name, err)
	}
	r.logger.Info("stage finished",
		"stage", def.Name,
		"mode", def.Mode,
		"total", report.Total,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", len(report.Failed),
		"duration", report.Duration(),
	)
	return report, nil
}

func (r *Runner) started(def Definition, t *tally, total int) {
	t.report.Total = total
	r.logger.Info("stage started", "stage", def.Name, "mode", def.Mode, "source", def.SourceDir, "dest", def.DestDir, "total", total)
	t.emit(Event{Stage: def.Name, Kind: EventStarted, Total: total})
}

func (r *Runner) failed(def Definition, t *tally, id hierarchy.ID, name string, err error) {
	r.logger.Warn("artifact failed", "stage", def.Name, "id", id.String(), "name", name, "error", err)
	t.fail(id, name, err)
}

// read loads a matched input as an artifact of the source stage.
func (r *Runner) read(def Definition, entry artifact.Entry) (artifact.Artifact, error) {
	content, err := r.store.Read(def.SourceDir, entry.Name)
	if err != nil {
		return artifact.Artifact{}, err
	}
	return artifact.New(def.InputPrefix, entry.ID, content), nil
}

// write persists a as name in the destination and records it as an output.
func (r *Runner) write(def Definition, t *tally, name string, a artifact.Artifact) error {
	if err := r.store.Write(def.DestDir, name, a.Content); err != nil {
		return err
	}
	t.output(a.ID, name, a.Content)
	return nil
}

func (r *Runner) match(def Definition) ([]artifact.Entry, error) {
	return artifact.Match(r.store, def.SourceDir, def.InputPattern(), def.Codec())
}

// forEach runs fn for indices [0, n) on at most workers goroutines. An error
// returned by fn cancels the remaining work and is returned; a cancelled parent
// context stops dispatch between units.
func forEach(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func workerCount(def Definition, opts RunOptions) int {
	switch {
	case opts.Workers > 0:
		return opts.Workers
	case def.Workers > 0:
		return def.Workers
	default:
		return DefaultWorkers
	}
}

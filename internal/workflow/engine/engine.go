package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/storyforge/internal/artifact"
	"github.com/kingrea/storyforge/internal/generate"
	"github.com/kingrea/storyforge/internal/metrics"
	"github.com/kingrea/storyforge/internal/stage"
	"github.com/kingrea/storyforge/internal/workflow"
)

// Journal receives one human-readable line per stage outcome.
type Journal interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Engine runs pipeline stages against the artifact store and persists the
// results.
type Engine struct {
	pipeline workflow.Pipeline
	repo     StateStore
	store    artifact.Store
	registry *generate.Registry
	journal  Journal
	metrics  *metrics.Metrics
	observer stage.Observer
	logger   *slog.Logger
	clock    func() time.Time
	newRunID func() string
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRunIDs overrides run id generation (primarily for tests).
func WithRunIDs(next func() string) Option {
	return func(e *Engine) {
		if next != nil {
			e.newRunID = next
		}
	}
}

// WithStore replaces the default filesystem store.
func WithStore(store artifact.Store) Option {
	return func(e *Engine) {
		if store != nil {
			e.store = store
		}
	}
}

// WithRegistry sets the backend registry.
func WithRegistry(registry *generate.Registry) Option {
	return func(e *Engine) {
		if registry != nil {
			e.registry = registry
		}
	}
}

// WithJournal records stage outcomes in a journal.
func WithJournal(journal Journal) Option {
	return func(e *Engine) {
		e.journal = journal
	}
}

// WithMetrics counts stage progress and backend calls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithObserver forwards stage progress events.
func WithObserver(observer stage.Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New wires an engine to a validated pipeline and a state store.
func New(pipeline workflow.Pipeline, repo StateStore, opts ...Option) (*Engine, error) {
	if err := pipeline.Validate(); err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("engine: state store is required")
	}
	engine := &Engine{
		pipeline: pipeline.Clone(),
		repo:     repo,
		registry: generate.DefaultRegistry(),
		logger:   slog.New(slog.DiscardHandler),
		clock:    time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(engine)
	}
	if engine.store == nil {
		engine.store = artifact.NewFileStore()
	}
	return engine, nil
}

// Pipeline returns a copy of the engine's pipeline.
func (e *Engine) Pipeline() workflow.Pipeline {
	return e.pipeline.Clone()
}

// RunStage runs exactly one stage.
func (e *Engine) RunStage(ctx context.Context, name string, opts stage.RunOptions) (stage.Report, error) {
	ref, ok := e.pipeline.Lookup(name)
	if !ok {
		return stage.Report{}, fmt.Errorf("engine: unknown stage %q (known: %s)", name, strings.Join(e.pipeline.Names(), ", "))
	}
	reports, err := e.run(ctx, []workflow.StageRef{ref}, opts)
	if len(reports) == 0 {
		return stage.Report{Stage: ref.Name(), Mode: ref.Definition.Mode, DryRun: opts.DryRun}, err
	}
	return reports[0], err
}

// RunPipeline runs the stages from `from` through `to` in order and stops at
// the first stage that fails or aborts. Empty bounds mean the whole pipeline.
func (e *Engine) RunPipeline(ctx context.Context, from, to string, opts stage.RunOptions) ([]stage.Report, error) {
	refs, err := e.pipeline.Slice(from, to)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, refs, opts)
}

// View returns the last persisted snapshot.
func (e *Engine) View() (State, error) {
	return e.repo.Load()
}

func (e *Engine) run(ctx context.Context, refs []workflow.StageRef, opts stage.RunOptions) ([]stage.Report, error) {
	runID := e.newRunID()
	logger := e.logger.With("run_id", runID)
	// Each run gets its own read cache so nothing read by an earlier run
	// outlives it.
	cached, err := artifact.NewCachedStore(e.store, artifact.DefaultCacheEntries)
	if err != nil {
		return nil, err
	}
	defer func() {
		stats := cached.Stats()
		logger.Debug("artifact cache", "hits", stats.Hits, "misses", stats.Misses)
	}()
	var store artifact.Store = cached
	var scratch *dryRun
	if opts.DryRun {
		scratch = newDryRun(cached)
		store = scratch.mem
	} else if claimer, ok := e.repo.(Claimer); ok {
		release, err := claimer.Claim(runID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(); err != nil {
				logger.Warn("release run claim", "error", err)
			}
		}()
	}
	runner, err := stage.NewRunner(store,
		stage.WithObserver(e.observers()),
		stage.WithLogger(logger),
		stage.WithClock(e.clock),
	)
	if err != nil {
		return nil, err
	}
	state := e.begin(runID, opts.DryRun)
	if err := e.save(state, opts.DryRun); err != nil {
		return nil, err
	}

	reports := make([]stage.Report, 0, len(refs))
	for _, ref := range refs {
		def := ref.Definition
		if err := ctx.Err(); err != nil {
			return reports, e.finish(&state, opts.DryRun, RunStatusAborted, def.Name, err)
		}
		if scratch != nil {
			if err := scratch.stage(def); err != nil {
				return reports, e.finish(&state, opts.DryRun, RunStatusFailed, def.Name, err)
			}
		}
		collab, err := e.pipeline.Collaborators(ctx, e.registry, ref, e.middleware(ref)...)
		if err != nil {
			e.journalf(levelError, "stage %s (%s): %v", def.Name, def.Mode, err)
			return reports, e.finish(&state, opts.DryRun, RunStatusFailed, def.Name, err)
		}
		report, runErr := runner.Run(ctx, def, collab, opts)
		reports = append(reports, report)
		state.record(report, def.DestDir, runErr)
		e.journalReport(report, runErr)
		if runErr != nil {
			status := RunStatusFailed
			if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
				status = RunStatusAborted
			}
			return reports, e.finish(&state, opts.DryRun, status, def.Name, runErr)
		}
		if !report.OK() {
			return reports, e.finish(&state, opts.DryRun, RunStatusFailed, def.Name, report.Err())
		}
		state.UpdatedAt = e.clock()
		if err := e.save(state, opts.DryRun); err != nil {
			return reports, err
		}
	}
	return reports, e.finish(&state, opts.DryRun, RunStatusComplete, "", nil)
}

// begin starts a new snapshot on top of the previous one so stages outside
// this run keep their last known result.
func (e *Engine) begin(runID string, dryRun bool) State {
	var state State
	if !dryRun {
		if prev, err := e.repo.Load(); err == nil {
			state = prev.clone()
		}
	}
	now := e.clock()
	state.RunID = runID
	state.Config = e.pipeline.Source
	state.Order = e.pipeline.Names()
	state.Status = RunStatusRunning
	state.StatusReason = ""
	state.StartedAt = now
	state.UpdatedAt = now
	return state
}

func (e *Engine) finish(state *State, dryRun bool, status RunStatus, stageName string, cause error) error {
	state.Status = status
	state.UpdatedAt = e.clock()
	if cause != nil {
		state.StatusReason = fmt.Sprintf("%s: %v", stageName, cause)
	}
	if err := e.save(*state, dryRun); err != nil {
		if cause != nil {
			return errors.Join(cause, err)
		}
		return err
	}
	return cause
}

func (e *Engine) save(state State, dryRun bool) error {
	if dryRun {
		return nil
	}
	return e.repo.Save(state)
}

func (e *Engine) observers() stage.Observer {
	var list stage.Observers
	if e.metrics != nil {
		list = append(list, e.metrics)
	}
	if e.observer != nil {
		list = append(list, e.observer)
	}
	return list
}

func (e *Engine) middleware(ref workflow.StageRef) []generate.Middleware {
	backend := ref.Backend.Backend
	if ref.SplitBackend != nil {
		backend = ref.SplitBackend.Backend
	}
	if backend == "" {
		backend = generate.BackendEcho
	}
	backend = strings.ToLower(backend)
	mws := []generate.Middleware{generate.Logging(e.logger, backend)}
	if e.metrics != nil {
		mws = append(mws, e.metrics.Instrument(backend))
	}
	return mws
}

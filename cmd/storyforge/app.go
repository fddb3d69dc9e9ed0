package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kingrea/storyforge/internal/config"
	"github.com/kingrea/storyforge/internal/logbook"
	"github.com/kingrea/storyforge/internal/logging"
	"github.com/kingrea/storyforge/internal/metrics"
	"github.com/kingrea/storyforge/internal/stage"
	"github.com/kingrea/storyforge/internal/workflow"
	"github.com/kingrea/storyforge/internal/workflow/engine"
)

const defaultConfigPath = "storyforge.ini"

// globalFlags are shared by every command that reads a configuration.
type globalFlags struct {
	configPath string
	logLevel   string
}

// runFlags tune stage execution.
type runFlags struct {
	workers     int
	force       bool
	dryRun      bool
	progress    bool
	metricsFile string
	sets        keyValueFlag
}

func (f runFlags) options() stage.RunOptions {
	return stage.RunOptions{Force: f.force, Workers: f.workers, DryRun: f.dryRun}
}

// app bundles everything a command needs once the configuration is loaded.
type app struct {
	cfg      *config.Config
	pipeline workflow.Pipeline
	logger   *logging.Logger
	journal  *logbook.Logbook
	metrics  *metrics.Metrics
	repo     *engine.Repository
	engine   *engine.Engine
	relay    *relayObserver
}

// openApp loads the configuration, applying --set overrides to stageName, and
// wires logging, the journal, metrics and the engine.
func openApp(flags *globalFlags, stageName string, sets keyValueFlag, stderr io.Writer) (*app, error) {
	level, err := logging.ParseLevel(flags.logLevel)
	if err != nil {
		return nil, err
	}
	var overrides map[string]map[string]string
	if len(sets) > 0 {
		if stageName == "" {
			return nil, errors.New("--set requires --stage")
		}
		overrides = map[string]map[string]string{stageName: sets}
	}
	cfg, pipeline, err := workflow.Load(flags.configPath, overrides)
	if err != nil {
		return nil, err
	}
	if err := cfg.InitStateDir(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogsDir(), level, stderr)
	if err != nil {
		return nil, err
	}
	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		logger.Close()
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		pipeline: pipeline,
		logger:   logger,
		journal:  journal,
		metrics:  metrics.New(),
		repo:     engine.NewRepository(cfg.RunStatePath()),
		relay:    &relayObserver{},
	}
	a.engine, err = engine.New(pipeline, a.repo,
		engine.WithLogger(logger.Logger),
		engine.WithJournal(journal),
		engine.WithMetrics(a.metrics),
		engine.WithObserver(a.relay),
	)
	if err != nil {
		logger.Close()
		return nil, err
	}
	logger.Debug("config loaded", "path", cfg.Path, "stages", len(pipeline.Stages))
	return a, nil
}

func (a *app) Close() error {
	return a.logger.Close()
}

func (a *app) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(path); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// relayObserver forwards events to an observer attached after the engine was
// built, such as the progress display.
type relayObserver struct {
	mu     sync.RWMutex
	target stage.Observer
}

func (r *relayObserver) attach(target stage.Observer) func() {
	r.mu.Lock()
	r.target = target
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.target = nil
		r.mu.Unlock()
	}
}

func (r *relayObserver) Observe(event stage.Event) {
	r.mu.RLock()
	target := r.target
	r.mu.RUnlock()
	if target != nil {
		target.Observe(event)
	}
}

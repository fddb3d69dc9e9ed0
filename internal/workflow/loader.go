package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kingrea/storyforge/internal/config"
	"github.com/kingrea/storyforge/internal/generate"
	"github.com/kingrea/storyforge/internal/stage"
)

// FromConfig builds the pipeline a configuration declares.
func FromConfig(cfg *config.Config) (Pipeline, error) {
	if cfg == nil {
		return Pipeline{}, fmt.Errorf("workflow: config is required")
	}
	pipeline := Pipeline{
		Source:        cfg.Path,
		SplitPatterns: cloneStringMap(cfg.SplitPatterns),
	}
	for _, sc := range cfg.Stages {
		ref, err := StageFromConfig(sc)
		if err != nil {
			return Pipeline{}, err
		}
		pipeline.Stages = append(pipeline.Stages, ref)
	}
	if err := pipeline.Validate(); err != nil {
		return Pipeline{}, err
	}
	return pipeline, nil
}

// Load reads a configuration file, applies per-stage overrides and builds the
// pipeline.
func Load(path string, overrides map[string]map[string]string) (*config.Config, Pipeline, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, Pipeline{}, err
	}
	for name, values := range overrides {
		if len(values) == 0 {
			continue
		}
		if err := cfg.Override(name, values); err != nil {
			return nil, Pipeline{}, err
		}
	}
	pipeline, err := FromConfig(cfg)
	if err != nil {
		return nil, Pipeline{}, err
	}
	return cfg, pipeline, nil
}

// StageFromConfig converts one configured stage into a definition plus its
// backend settings.
func StageFromConfig(sc config.StageConfig) (StageRef, error) {
	mode, err := ResolveMode(sc)
	if err != nil {
		return StageRef{}, fmt.Errorf("workflow stage %s: %w", sc.Name, err)
	}
	prompt, err := promptPath(sc)
	if err != nil {
		return StageRef{}, fmt.Errorf("workflow stage %s: %w", sc.Name, err)
	}
	def := stage.Definition{
		Name:         sc.Name,
		SourceDir:    sc.Source,
		DestDir:      sc.Destination,
		InputGlob:    sc.Pattern,
		InputPrefix:  sc.InputPrefix,
		InputDepth:   sc.InputDepth(),
		OutputPrefix: sc.OutputPrefix,
		Mode:         mode,
		Width:        sc.Width,
		Joiner:       sc.Joiner,
		PromptPath:   prompt,
		Backend:      sc.Backend.Name,
		Splitter:     sc.Split,
		SplitBackend: sc.SplitBackend,
		Workers:      sc.Workers,
	}
	ref := StageRef{Definition: def, Backend: settingsFor(sc.Backend)}
	if sc.SplitBackend != "" {
		split := settingsFor(sc.Backend)
		split.Backend = sc.SplitBackend
		ref.SplitBackend = &split
	}
	return ref, nil
}

// ResolveMode picks the stage mode. An explicit mode wins but must agree with
// the patterns when both are declared; otherwise the wildcard arity of the
// input and output patterns decides; a stage that only names a splitter
// splits; everything else expands.
func ResolveMode(sc config.StageConfig) (stage.Mode, error) {
	var inferred stage.Mode
	if out := sc.OutputDepth(); out > 0 {
		mode, err := stage.InferMode(sc.InputDepth(), out)
		if err != nil {
			return "", err
		}
		inferred = mode
	}
	if sc.Mode != "" {
		mode, err := stage.ParseMode(sc.Mode)
		if err != nil {
			return "", err
		}
		if inferred != "" && inferred != mode {
			return "", fmt.Errorf("mode %s contradicts patterns %q -> %q (%s)", mode, sc.Pattern, sc.OutputPattern, inferred)
		}
		return mode, nil
	}
	if inferred != "" {
		return inferred, nil
	}
	if sc.Split != "" || sc.SplitBackend != "" {
		return stage.ModeSplit, nil
	}
	return stage.ModeExpand, nil
}

// promptPath keeps an explicit prompt as is and uses the conventional
// <source>/<output prefix>_prompt.txt only when that file exists.
func promptPath(sc config.StageConfig) (string, error) {
	path, explicit := sc.PromptPath()
	if path == "" || explicit {
		return path, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat prompt %s: %w", path, err)
	}
	return path, nil
}

func settingsFor(b config.Backend) generate.Settings {
	return generate.Settings{
		Backend:  b.Name,
		URL:      b.URL,
		Bearer:   b.Bearer,
		APIKey:   b.APIKey,
		Model:    b.Model,
		Insecure: b.Insecure,
		RPS:      b.RPS,
		Burst:    b.Burst,
		Retries:  b.RetryCount(),
		Timeout:  b.Timeout,
	}
}

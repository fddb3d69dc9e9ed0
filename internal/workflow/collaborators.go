package workflow

import (
	"context"
	"fmt"
	"os"

	"github.com/kingrea/storyforge/internal/generate"
	"github.com/kingrea/storyforge/internal/stage"
)

// Collaborators resolves the generator, splitter and prompt a stage needs.
// Extra middleware wraps every resolved generator outermost.
func (p Pipeline) Collaborators(ctx context.Context, reg *generate.Registry, ref StageRef, extra ...generate.Middleware) (stage.Collaborators, error) {
	if reg == nil {
		reg = generate.DefaultRegistry()
	}
	def := ref.Definition
	var collab stage.Collaborators
	if def.PromptPath != "" {
		data, err := os.ReadFile(def.PromptPath)
		if err != nil {
			return collab, fmt.Errorf("workflow stage %s: read prompt: %w", def.Name, err)
		}
		collab.Prompt = string(data)
	}
	switch def.Mode {
	case stage.ModeExpand:
		gen, err := reg.Resolve(ctx, ref.Backend)
		if err != nil {
			return collab, fmt.Errorf("workflow stage %s: %w", def.Name, err)
		}
		collab.Generator = generate.Wrap(gen, extra...)
	case stage.ModeSplit:
		splitter, err := generate.NewSplitter(def.Splitter, p.SplitPatterns)
		if err != nil {
			return collab, fmt.Errorf("workflow stage %s: %w", def.Name, err)
		}
		if ref.SplitBackend != nil {
			gen, err := reg.Resolve(ctx, *ref.SplitBackend)
			if err != nil {
				return collab, fmt.Errorf("workflow stage %s: %w", def.Name, err)
			}
			splitter = generate.GeneratedSplitter{Generator: generate.Wrap(gen, extra...), Splitter: splitter}
		}
		collab.Splitter = splitter
	}
	return collab, nil
}

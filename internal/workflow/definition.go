package workflow

import (
	"fmt"
	"strings"

	"github.com/kingrea/storyforge/internal/generate"
	"github.com/kingrea/storyforge/internal/stage"
)

// StageRef binds a stage definition to the backends it resolves at run time.
type StageRef struct {
	Definition stage.Definition
	// Backend configures the generator for expand stages.
	Backend generate.Settings
	// SplitBackend, when set, restructures content before a split stage's
	// splitter runs.
	SplitBackend *generate.Settings
}

// Name returns the stage name.
func (ref StageRef) Name() string {
	return ref.Definition.Name
}

// Clone returns a deep copy of the reference.
func (ref StageRef) Clone() StageRef {
	clone := ref
	if ref.SplitBackend != nil {
		settings := *ref.SplitBackend
		clone.SplitBackend = &settings
	}
	return clone
}

// Pipeline is the ordered list of stages a configuration declares. Stage k+1
// reads what stage k wrote, so order is significant.
type Pipeline struct {
	Source        string
	Stages        []StageRef
	SplitPatterns map[string]string
}

// Clone returns a deep copy of the pipeline.
func (p Pipeline) Clone() Pipeline {
	clone := Pipeline{Source: p.Source, SplitPatterns: cloneStringMap(p.SplitPatterns)}
	if len(p.Stages) > 0 {
		clone.Stages = make([]StageRef, len(p.Stages))
		for i, ref := range p.Stages {
			clone.Stages[i] = ref.Clone()
		}
	}
	return clone
}

// Validate ensures the pipeline is self-consistent.
func (p Pipeline) Validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("workflow: at least one stage is required")
	}
	seen := map[string]struct{}{}
	for idx, ref := range p.Stages {
		if err := ref.Definition.Validate(); err != nil {
			return fmt.Errorf("workflow stage[%d]: %w", idx, err)
		}
		key := strings.ToLower(ref.Name())
		if _, exists := seen[key]; exists {
			return fmt.Errorf("workflow: duplicate stage %s", ref.Name())
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Names returns the stage names in pipeline order.
func (p Pipeline) Names() []string {
	names := make([]string, len(p.Stages))
	for i, ref := range p.Stages {
		names[i] = ref.Name()
	}
	return names
}

// Lookup finds a stage by name, case-insensitively.
func (p Pipeline) Lookup(name string) (StageRef, bool) {
	idx := p.index(name)
	if idx < 0 {
		return StageRef{}, false
	}
	return p.Stages[idx].Clone(), true
}

// Slice returns the stages from `from` through `to`, inclusive. Empty bounds
// mean the first and last stage.
func (p Pipeline) Slice(from, to string) ([]StageRef, error) {
	start, end := 0, len(p.Stages)-1
	if strings.TrimSpace(from) != "" {
		if start = p.index(from); start < 0 {
			return nil, fmt.Errorf("workflow: unknown stage %q (known: %s)", from, strings.Join(p.Names(), ", "))
		}
	}
	if strings.TrimSpace(to) != "" {
		if end = p.index(to); end < 0 {
			return nil, fmt.Errorf("workflow: unknown stage %q (known: %s)", to, strings.Join(p.Names(), ", "))
		}
	}
	if start > end {
		return nil, fmt.Errorf("workflow: stage %s comes after %s", p.Stages[start].Name(), p.Stages[end].Name())
	}
	out := make([]StageRef, 0, end-start+1)
	for _, ref := range p.Stages[start : end+1] {
		out = append(out, ref.Clone())
	}
	return out, nil
}

func (p Pipeline) index(name string) int {
	name = strings.TrimSpace(name)
	for i, ref := range p.Stages {
		if strings.EqualFold(ref.Name(), name) {
			return i
		}
	}
	return -1
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	clone := make(map[string]string, len(values))
	for key, value := range values {
		clone[key] = value
	}
	return clone
}

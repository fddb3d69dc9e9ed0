package engine

import (
	"errors"
	"sort"

	"github.com/kingrea/storyforge/internal/artifact"
)

// Drift describes a recorded output whose file no longer matches.
type Drift struct {
	Stage    string
	Name     string
	Expected string
	Actual   string
	Missing  bool
}

// Verify re-reads every output recorded in the persisted state and compares
// its digest with the one recorded when it was written.
func (e *Engine) Verify() ([]Drift, error) {
	state, err := e.repo.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(state.Stages))
	for name := range state.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	var drifts []Drift
	for _, name := range names {
		run := state.Stages[name]
		for _, out := range run.Outputs {
			content, err := e.store.Read(run.Dir, out.Name)
			if err != nil {
				var missing *artifact.MissingArtifactError
				if errors.As(err, &missing) {
					drifts = append(drifts, Drift{Stage: name, Name: out.Name, Expected: out.Digest, Missing: true})
					continue
				}
				return drifts, err
			}
			if actual := artifact.Digest(content); actual != out.Digest {
				drifts = append(drifts, Drift{Stage: name, Name: out.Name, Expected: out.Digest, Actual: actual})
			}
		}
	}
	return drifts, nil
}

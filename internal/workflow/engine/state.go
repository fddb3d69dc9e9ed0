package engine

import (
	"sort"
	"time"

	"github.com/kingrea/storyforge/internal/stage"
)

// RunStatus enumerates coarse run phases.
type RunStatus string

const (
	RunStatusUnknown  RunStatus = "unknown"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
	RunStatusAborted  RunStatus = "aborted"
)

// State captures the persisted snapshot of the latest run plus the last known
// result of every stage that has ever run.
type State struct {
	RunID  string    `json:"run_id"`
	Config string    `json:"config,omitempty"`
	Status RunStatus `json:"status"`
	// StatusReason explains non-complete states.
	StatusReason string              `json:"status_reason,omitempty"`
	Order        []string            `json:"order,omitempty"`
	Stages       map[string]StageRun `json:"stages,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// StageRun persists the last result for one stage.
type StageRun struct {
	RunID      string           `json:"run_id"`
	Mode       stage.Mode       `json:"mode"`
	Dir        string           `json:"dir"`
	Total      int              `json:"total"`
	Processed  int              `json:"processed"`
	Skipped    int              `json:"skipped"`
	Failed     []FailedArtifact `json:"failed,omitempty"`
	Error      string           `json:"error,omitempty"`
	Outputs    []OutputRecord   `json:"outputs,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// OK reports whether the stage finished without failures.
func (r StageRun) OK() bool {
	return r.Error == "" && len(r.Failed) == 0
}

// FailedArtifact is one unit of work that did not complete.
type FailedArtifact struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

// OutputRecord is a written artifact and the digest of what was written.
type OutputRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Digest string `json:"digest"`
}

// Stage returns the last run of the named stage.
func (s State) Stage(name string) (StageRun, bool) {
	run, ok := s.Stages[name]
	return run, ok
}

func (s State) clone() State {
	clone := s
	clone.Order = cloneStrings(s.Order)
	if len(s.Stages) > 0 {
		clone.Stages = make(map[string]StageRun, len(s.Stages))
		for name, run := range s.Stages {
			clone.Stages[name] = run
		}
	}
	return clone
}

// record folds a stage report into the state. Outputs from earlier runs stay
// recorded unless this run rewrote them, because a resumed run skips what an
// earlier run already produced.
func (s *State) record(report stage.Report, dir string, runErr error) {
	if s.Stages == nil {
		s.Stages = map[string]StageRun{}
	}
	prev := s.Stages[report.Stage]
	run := StageRun{
		RunID:      s.RunID,
		Mode:       report.Mode,
		Dir:        dir,
		Total:      report.Total,
		Processed:  report.Processed,
		Skipped:    report.Skipped,
		Error:      errorString(runErr),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	for _, failure := range report.Failed {
		run.Failed = append(run.Failed, FailedArtifact{ID: failure.ID.String(), Name: failure.Name, Error: errorString(failure.Err)})
	}
	outputs := map[string]OutputRecord{}
	if prev.Dir == dir {
		for _, out := range prev.Outputs {
			outputs[out.Name] = out
		}
	}
	for _, out := range report.Outputs {
		outputs[out.Name] = OutputRecord{ID: out.ID.String(), Name: out.Name, Digest: out.Digest}
	}
	run.Outputs = make([]OutputRecord, 0, len(outputs))
	for _, out := range outputs {
		run.Outputs = append(run.Outputs, out)
	}
	sort.Slice(run.Outputs, func(i, j int) bool { return run.Outputs[i].Name < run.Outputs[j].Name })
	s.Stages[report.Stage] = run
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

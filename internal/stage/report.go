package stage

import (
	"sort"
	"sync"
	"time"

	"github.com/kingrea/storyforge/internal/artifact"
	"github.com/kingrea/storyforge/internal/hierarchy"
)

// Failure records one unit of work that could not be completed.
type Failure struct {
	ID   hierarchy.ID
	Name string
	Err  error
}

// Output records one written artifact.
type Output struct {
	ID     hierarchy.ID
	Name   string
	Digest string
}

// Report summarizes a stage run. Total counts units of work: inputs for
// expand and split, sibling groups for merge.
type Report struct {
	Stage      string
	Mode       Mode
	Matched    int
	Total      int
	Processed  int
	Skipped    int
	Failed     []Failure
	Outputs    []Output
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether no unit failed.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// FailedIDs lists the failed ids in hierarchy order.
func (r Report) FailedIDs() []string {
	ids := make([]string, len(r.Failed))
	for i, failure := range r.Failed {
		ids[i] = failure.ID.String()
	}
	return ids
}

// Err returns a FailedArtifactsError when any unit failed.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	failed := make([]Failure, len(r.Failed))
	copy(failed, r.Failed)
	return &FailedArtifactsError{Stage: r.Stage, Failed: failed}
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// tally collects results from concurrent workers and forwards them to the
// observer.
type tally struct {
	mu       sync.Mutex
	report   *Report
	observer Observer
}

func newTally(report *Report, observer Observer) *tally {
	return &tally{report: report, observer: observer}
}

func (t *tally) output(id hierarchy.ID, name, content string) {
	t.mu.Lock()
	t.report.Outputs = append(t.report.Outputs, Output{ID: id.Clone(), Name: name, Digest: artifact.Digest(content)})
	t.mu.Unlock()
}

func (t *tally) done(id hierarchy.ID) {
	t.mu.Lock()
	t.report.Processed++
	t.mu.Unlock()
	t.emit(Event{Stage: t.report.Stage, Kind: EventProcessed, ID: id.Clone()})
}

func (t *tally) skip(id hierarchy.ID) {
	t.mu.Lock()
	t.report.Skipped++
	t.mu.Unlock()
	t.emit(Event{Stage: t.report.Stage, Kind: EventSkipped, ID: id.Clone()})
}

func (t *tally) fail(id hierarchy.ID, name string, err error) {
	t.mu.Lock()
	t.report.Failed = append(t.report.Failed, Failure{ID: id.Clone(), Name: name, Err: err})
	t.mu.Unlock()
	t.emit(Event{Stage: t.report.Stage, Kind: EventFailed, ID: id.Clone(), Err: err})
}

func (t *tally) emit(event Event) {
	if t.observer != nil {
		t.observer.Observe(event)
	}
}

// finish orders failures and outputs by id so reports are deterministic.
func (t *tally) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	sort.SliceStable(t.report.Failed, func(i, j int) bool {
		return t.report.Failed[i].ID.Compare(t.report.Failed[j].ID) < 0
	})
	sort.SliceStable(t.report.Outputs, func(i, j int) bool {
		return t.report.Outputs[i].ID.Compare(t.report.Outputs[j].ID) < 0
	})
}

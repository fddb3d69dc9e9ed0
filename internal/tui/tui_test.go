package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/storyforge/internal/hierarchy"
	"github.com/kingrea/storyforge/internal/stage"
	"github.com/kingrea/storyforge/internal/workflow/engine"
)

func feed(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	var model tea.Model = m
	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}
	out, ok := model.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", model)
	}
	return out
}

func TestModelTracksStageProgress(t *testing.T) {
	m := feed(t, NewModel("pipeline", nil),
		EventMsg{Stage: "scenes", Kind: stage.EventStarted, Total: 3},
		EventMsg{Stage: "scenes", Kind: stage.EventProcessed, ID: hierarchy.New(1)},
		EventMsg{Stage: "scenes", Kind: stage.EventSkipped, ID: hierarchy.New(2)},
		EventMsg{Stage: "scenes", Kind: stage.EventFailed, ID: hierarchy.New(3), Err: errors.New("boom")},
		EventMsg{Stage: "scenes", Kind: stage.EventFinished, Report: &stage.Report{Mode: stage.ModeSplit}},
		EventMsg{Stage: "draft", Kind: stage.EventStarted, Total: 2},
	)
	if len(m.stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(m.stages))
	}
	scenes := m.index["scenes"]
	if scenes.done != 3 || scenes.skipped != 1 || scenes.failed != 1 || !scenes.finished || scenes.mode != stage.ModeSplit {
		t.Fatalf("scenes progress = %+v", scenes)
	}
	view := m.View()
	for _, want := range []string{"pipeline", "scenes", "3/3", "1 failed", "1 skipped", "draft", "0/2"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModelCancelsThenQuitsOnDone(t *testing.T) {
	cancelled := false
	var model tea.Model = NewModel("run", func() { cancelled = true })
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled || cmd != nil {
		t.Fatalf("ctrl+c should cancel and keep the display up (cancelled=%v)", cancelled)
	}
	if !strings.Contains(model.View(), "cancelling") {
		t.Fatalf("view should show cancellation:\n%s", model.View())
	}
	model, cmd = model.Update(doneMsg{err: errors.New("context canceled")})
	if cmd == nil {
		t.Fatalf("done should quit the program")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Fatalf("expected quit message, got %#v", msg)
	}
	if m := model.(Model); !m.done || m.err == nil {
		t.Fatalf("done state not recorded: %+v", m)
	}
}

func TestRenderReport(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := RenderReport(stage.Report{
		Stage: "paragraph", Mode: stage.ModeExpand, Matched: 4, Total: 4, Processed: 2, Skipped: 1,
		Failed:    []stage.Failure{{ID: hierarchy.New(3), Name: "sentence_03.txt", Err: errors.New("backend down")}},
		StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
	})
	for _, want := range []string{"paragraph (EXPAND)", "2 processed", "1 skipped", "1 failed", "sentence_03.txt", "backend down", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStateAndDrift(t *testing.T) {
	state := engine.State{
		RunID:        "run-1",
		Status:       engine.RunStatusFailed,
		StatusReason: "draft: incomplete group",
		Order:        []string{"scenes", "draft"},
		Stages: map[string]engine.StageRun{
			"draft":  {Mode: stage.ModeMerge, Error: "children of 2 incomplete"},
			"scenes": {Mode: stage.ModeSplit, Processed: 2},
			"old":    {Mode: stage.ModeExpand},
		},
	}
	out := RenderState(state, []string{"2026-01-01T00:00:00Z INFO  stage scenes"}, 7)
	scenes := strings.Index(out, "scenes")
	draft := strings.Index(out, "draft ")
	old := strings.Index(out, "old")
	if scenes < 0 || draft < 0 || old < 0 || !(scenes < draft && draft < old) {
		t.Fatalf("stages out of order:\n%s", out)
	}
	for _, want := range []string{"run run-1", "failed", "children of 2 incomplete", "journal (last 1 of 7)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("state missing %q:\n%s", want, out)
		}
	}

	if !strings.Contains(RenderDrift(nil), "verified") {
		t.Fatalf("empty drift should verify")
	}
	drift := RenderDrift([]engine.Drift{{Stage: "scenes", Name: "scenes_01_01.txt", Missing: true}})
	if !strings.Contains(drift, "1 output(s) drifted") || !strings.Contains(drift, "missing") {
		t.Fatalf("drift = %s", drift)
	}
}

// Package tui renders run progress and results for the terminal: a bubbletea
// progress display during a run and lipgloss-styled summaries afterwards.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/storyforge/internal/generate"
	"github.com/kingrea/storyforge/internal/stage"
	"github.com/kingrea/storyforge/internal/workflow"
	"github.com/kingrea/storyforge/internal/workflow/engine"
)

var (
	labelStyleReady   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStyleBlocked = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyleRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleGate    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStyleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	labelStyleDefault = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	detailTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	boxStyle          = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// RenderReport summarizes one stage run: counts, failed ids and errors.
func RenderReport(report stage.Report) string {
	var lines []string
	title := fmt.Sprintf("%s (%s)", report.Stage, report.Mode)
	if report.DryRun {
		title += " " + labelStyleGate.Render("dry run")
	}
	lines = append(lines, labelStyleRunning.Render(title))
	lines = append(lines, fmt.Sprintf("%s %s %s %s",
		detailTextStyle.Render(fmt.Sprintf("matched %d, units %d:", report.Matched, report.Total)),
		labelStyleReady.Render(fmt.Sprintf("%d processed", report.Processed)),
		labelStyleSkipped.Render(fmt.Sprintf("%d skipped", report.Skipped)),
		failedLabel(len(report.Failed)),
	))
	for _, failure := range report.Failed {
		lines = append(lines, labelStyleBlocked.Render(fmt.Sprintf("  ✗ %s %s: %v", failure.ID, failure.Name, failure.Err)))
	}
	lines = append(lines, detailTextStyle.Render(fmt.Sprintf("took %s", report.Duration().Round(time.Millisecond))))
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// RenderReports stacks the summaries of a pipeline run.
func RenderReports(reports []stage.Report) string {
	blocks := make([]string, len(reports))
	for i, report := range reports {
		blocks[i] = RenderReport(report)
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

// RenderStages lists the pipeline stages with mode, depths and directories.
func RenderStages(p workflow.Pipeline) string {
	var lines []string
	for i, ref := range p.Stages {
		def := ref.Definition
		line := fmt.Sprintf("%d. %s %s %s",
			i+1,
			labelStyleRunning.Render(def.Name),
			labelStyleGate.Render(def.Mode.String()),
			detailTextStyle.Render(fmt.Sprintf("depth %d→%d  %s/%s_* → %s/%s_*",
				def.InputDepth, def.OutputDepth(), def.SourceDir, def.InputPrefix, def.DestDir, def.OutputPrefix)),
		)
		lines = append(lines, line)
		if backend := backendLabel(ref); backend != "" {
			lines = append(lines, labelStyleSkipped.Render("   "+backend))
		}
	}
	lines = append(lines, detailTextStyle.Render("splitters: "+strings.Join(generate.SplitterNames(p.SplitPatterns), ", ")))
	return strings.Join(lines, "\n")
}

// RenderState prints the persisted run snapshot followed by the journal tail.
func RenderState(state engine.State, journal []string, total int) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("%s %s", labelStyleRunning.Render("run "+state.RunID), statusLabel(state.Status)))
	if state.StatusReason != "" {
		lines = append(lines, detailTextStyle.Render(state.StatusReason))
	}
	for _, name := range stateOrder(state) {
		run := state.Stages[name]
		line := fmt.Sprintf("  %-14s %s %s %s %s",
			name,
			labelStyleGate.Render(run.Mode.String()),
			labelStyleReady.Render(fmt.Sprintf("%d processed", run.Processed)),
			labelStyleSkipped.Render(fmt.Sprintf("%d skipped", run.Skipped)),
			failedLabel(len(run.Failed)),
		)
		lines = append(lines, line)
		for _, failure := range run.Failed {
			lines = append(lines, labelStyleBlocked.Render(fmt.Sprintf("      ✗ %s: %s", failure.ID, failure.Error)))
		}
		if run.Error != "" {
			lines = append(lines, labelStyleBlocked.Render("      "+run.Error))
		}
	}
	if len(journal) > 0 {
		lines = append(lines, "", detailTextStyle.Render(fmt.Sprintf("journal (last %d of %d)", len(journal), total)))
		for _, entry := range journal {
			lines = append(lines, labelStyleDefault.Render("  "+entry))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderDrift lists outputs that no longer match their recorded digest.
func RenderDrift(drifts []engine.Drift) string {
	if len(drifts) == 0 {
		return labelStyleReady.Render("all recorded outputs verified")
	}
	lines := []string{labelStyleBlocked.Render(fmt.Sprintf("%d output(s) drifted", len(drifts)))}
	for _, drift := range drifts {
		reason := fmt.Sprintf("digest %s, recorded %s", short(drift.Actual), short(drift.Expected))
		if drift.Missing {
			reason = "missing"
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s", drift.Stage, drift.Name, labelStyleBlocked.Render(reason)))
	}
	return strings.Join(lines, "\n")
}

func failedLabel(n int) string {
	if n == 0 {
		return labelStyleSkipped.Render("0 failed")
	}
	return labelStyleBlocked.Render(fmt.Sprintf("%d failed", n))
}

func statusLabel(status engine.RunStatus) string {
	switch status {
	case engine.RunStatusComplete:
		return labelStyleReady.Render(string(status))
	case engine.RunStatusFailed, engine.RunStatusAborted:
		return labelStyleBlocked.Render(string(status))
	case engine.RunStatusRunning:
		return labelStyleGate.Render(string(status))
	default:
		return labelStyleDefault.Render(string(status))
	}
}

func backendLabel(ref workflow.StageRef) string {
	def := ref.Definition
	switch def.Mode {
	case stage.ModeExpand:
		name := ref.Backend.Backend
		if name == "" {
			name = "echo"
		}
		return "backend " + name
	case stage.ModeSplit:
		splitter := def.Splitter
		if splitter == "" {
			splitter = "paragraphs"
		}
		if ref.SplitBackend != nil {
			return fmt.Sprintf("split %s after %s", splitter, ref.SplitBackend.Backend)
		}
		return "split " + splitter
	}
	return ""
}

// stateOrder lists stages in pipeline order, then any stage no longer in the
// pipeline alphabetically.
func stateOrder(state engine.State) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, name := range state.Order {
		if _, ok := state.Stages[name]; ok {
			names = append(names, name)
			seen[name] = struct{}{}
		}
	}
	var rest []string
	for name := range state.Stages {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

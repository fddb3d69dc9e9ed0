package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/storyforge/internal/stage"
)

const (
	minBarWidth     = 10
	defaultBarWidth = 40
)

// EventMsg carries a stage progress event into the model.
type EventMsg stage.Event

type doneMsg struct {
	err error
}

type stageProgress struct {
	name     string
	mode     stage.Mode
	total    int
	done     int
	skipped  int
	failed   int
	finished bool
	err      error
}

// Model renders live per-stage progress bars while a run is in flight.
type Model struct {
	title      string
	spinner    spinner.Model
	bar        progress.Model
	stages     []*stageProgress
	index      map[string]*stageProgress
	cancel     context.CancelFunc
	cancelling bool
	done       bool
	err        error
}

// NewModel builds an idle progress model. cancel, when set, is called on
// ctrl+c; the model keeps running until the work reports that it stopped.
func NewModel(title string, cancel context.CancelFunc) Model {
	spin := spinner.New(spinner.WithSpinner(spinner.Dot))
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	return Model{
		title:   title,
		spinner: spin,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth)),
		index:   map[string]*stageProgress{},
		cancel:  cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.cancelling {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
				return m, nil
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(minBarWidth, min(defaultBarWidth, msg.Width-40))
	case EventMsg:
		m.apply(stage.Event(msg))
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(event stage.Event) {
	sp, ok := m.index[event.Stage]
	if !ok {
		sp = &stageProgress{name: event.Stage}
		m.index[event.Stage] = sp
		m.stages = append(m.stages, sp)
	}
	switch event.Kind {
	case stage.EventStarted:
		*sp = stageProgress{name: event.Stage, total: event.Total}
	case stage.EventProcessed:
		sp.done++
	case stage.EventSkipped:
		sp.done++
		sp.skipped++
	case stage.EventFailed:
		sp.done++
		sp.failed++
	case stage.EventFinished:
		sp.finished = true
		sp.err = event.Err
		if event.Report != nil {
			sp.mode = event.Report.Mode
		}
	}
}

func (m Model) View() string {
	var b strings.Builder
	head := m.spinner.View() + " "
	if m.done {
		head = ""
	}
	b.WriteString(head + labelStyleRunning.Render(m.title))
	if m.cancelling && !m.done {
		b.WriteString(" " + labelStyleGate.Render("cancelling, waiting for in-flight artifacts"))
	}
	b.WriteString("\n")
	for _, sp := range m.stages {
		b.WriteString(m.renderStage(sp))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderStage(sp *stageProgress) string {
	percent := 0.0
	if sp.total > 0 {
		percent = float64(sp.done) / float64(sp.total)
	} else if sp.finished {
		percent = 1
	}
	label := labelStyleDefault.Render(fmt.Sprintf("%-14s", sp.name))
	counts := detailTextStyle.Render(fmt.Sprintf("%d/%d", sp.done, sp.total))
	var status string
	switch {
	case sp.err != nil:
		status = labelStyleBlocked.Render("aborted")
	case sp.failed > 0:
		status = labelStyleBlocked.Render(fmt.Sprintf("%d failed", sp.failed))
	case sp.finished:
		status = labelStyleReady.Render("done")
	}
	if sp.skipped > 0 {
		status = strings.TrimSpace(status + " " + labelStyleSkipped.Render(fmt.Sprintf("%d skipped", sp.skipped)))
	}
	return strings.TrimRight(fmt.Sprintf("%s %s %s %s", label, m.bar.ViewAs(percent), counts, status), " ")
}

// Run drives work under a live progress display written to out. The observer
// handed to work forwards stage events to the display.
func Run(ctx context.Context, title string, in io.Reader, out io.Writer, work func(ctx context.Context, observer stage.Observer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	opts := []tea.ProgramOption{tea.WithOutput(out)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	program := tea.NewProgram(NewModel(title, cancel), opts...)
	finished := make(chan error, 1)
	go func() {
		err := work(ctx, stage.ObserverFunc(func(event stage.Event) {
			program.Send(EventMsg(event))
		}))
		program.Send(doneMsg{err: err})
		finished <- err
	}()
	if _, err := program.Run(); err != nil {
		cancel()
		<-finished
		return fmt.Errorf("tui: %w", err)
	}
	return <-finished
}

// Package tui provides the terminal user interface for fission. The
// monitor renders a live view of a wave execution run from the executor's
// event stream.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/fission/internal/executor"
	"github.com/ShayCichocki/fission/internal/graph"
	"github.com/ShayCichocki/fission/pkg/models"
)

// eventMsg wraps an executor event for the bubbletea loop.
type eventMsg executor.Event

// streamClosedMsg signals that the executor closed its event channel.
type streamClosedMsg struct{}

// DoneMsg carries the final report once the run settles. Send it via
// Program.Send after Execute returns.
type DoneMsg struct {
	Report *models.ExecutionReport
	Err    error
}

// Monitor is the bubbletea model for a live execution run.
type Monitor struct {
	spinner  spinner.Model
	progress progress.Model

	// waves holds atom IDs in wave order, each wave sorted by the graph.
	waves  [][]string
	status map[string]models.AtomStatus
	// attempts tracks the latest attempt number seen per atom.
	attempts map[string]int

	events    <-chan executor.Event
	report    *models.ExecutionReport
	runErr    error
	startedAt time.Time

	// onQuit requests run cancellation when the user presses q.
	onQuit func()

	width    int
	quitting bool
}

// NewMonitor creates a Monitor for the given graph and event stream. onQuit
// is invoked once when the user asks to stop; pass the run's context cancel.
func NewMonitor(g *graph.DependencyGraph, events <-chan executor.Event, onQuit func()) *Monitor {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = runningStyle

	m := &Monitor{
		spinner:   sp,
		progress:  progress.New(progress.WithDefaultGradient()),
		waves:     g.Waves(),
		status:    make(map[string]models.AtomStatus, g.Size()),
		attempts:  make(map[string]int, g.Size()),
		events:    events,
		startedAt: time.Now(),
		onQuit:    onQuit,
		width:     80,
	}
	for _, wave := range m.waves {
		for _, id := range wave {
			m.status[id] = models.AtomStatusPending
		}
	}
	return m
}

// Init implements tea.Model.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

// waitForEvent blocks on the event stream and forwards the next event.
func (m *Monitor) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(event)
	}
}

// Update implements tea.Model.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.report != nil {
				m.quitting = true
				return m, tea.Quit
			}
			if m.onQuit != nil {
				m.onQuit()
				m.onQuit = nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(msg.Width-8, 60)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(executor.Event(msg))
		return m, m.waitForEvent()

	case streamClosedMsg:
		// The final report arrives separately as a DoneMsg.

	case DoneMsg:
		m.report = msg.Report
		m.runErr = msg.Err
		if m.report != nil {
			for id, res := range m.report.Results {
				m.status[id] = res.Status
			}
		}
	}

	return m, nil
}

// apply folds one executor event into the atom state.
func (m *Monitor) apply(event executor.Event) {
	switch event.Type {
	case executor.EventStarted:
		m.status[event.AtomID] = models.AtomStatusRunning
	case executor.EventSucceeded:
		m.status[event.AtomID] = models.AtomStatusSucceeded
	case executor.EventFailed:
		m.status[event.AtomID] = models.AtomStatusFailed
	case executor.EventSkipped:
		m.status[event.AtomID] = models.AtomStatusSkipped
	}
	if event.Attempt > m.attempts[event.AtomID] {
		m.attempts[event.AtomID] = event.Attempt
	}
}

// settled counts atoms that reached a terminal status.
func (m *Monitor) settled() int {
	n := 0
	for _, st := range m.status {
		if st.Terminal() {
			n++
		}
	}
	return n
}

// View implements tea.Model.
func (m *Monitor) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("fission"))
	b.WriteString("  ")
	b.WriteString(subtitleStyle.Render("wave execution"))
	b.WriteString("\n\n")

	for i, wave := range m.waves {
		b.WriteString(waveLabelStyle.Render(fmt.Sprintf("wave %d", i)))
		b.WriteString("\n")
		for _, id := range wave {
			b.WriteString("  ")
			b.WriteString(m.renderAtom(id))
			b.WriteString("\n")
		}
	}

	total := len(m.status)
	settled := m.settled()
	percent := 0.0
	if total > 0 {
		percent = float64(settled) / float64(total)
	}
	b.WriteString("\n")
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString(fmt.Sprintf("  %d/%d", settled, total))

	if m.report != nil {
		b.WriteString(m.renderSummary())
	}
	b.WriteString(footerStyle.Render(m.footer()))
	b.WriteString("\n")
	return b.String()
}

// renderAtom renders one atom line with its status glyph.
func (m *Monitor) renderAtom(id string) string {
	st := m.status[id]
	label := id
	if n := m.attempts[id]; n > 1 {
		label = fmt.Sprintf("%s (attempt %d)", id, n)
	}

	switch st {
	case models.AtomStatusRunning:
		return m.spinner.View() + " " + runningStyle.Render(label)
	case models.AtomStatusSucceeded:
		return succeededStyle.Render("✓ " + label)
	case models.AtomStatusFailed:
		return failedStyle.Render("✗ " + label)
	case models.AtomStatusSkipped:
		return skippedStyle.Render("⊘ " + label)
	case models.AtomStatusAborted:
		return abortedStyle.Render("◼ " + label)
	default:
		return pendingStyle.Render("· " + label)
	}
}

// renderSummary renders the terminal status counts after the run settles.
func (m *Monitor) renderSummary() string {
	parts := []string{
		succeededStyle.Render(fmt.Sprintf("%d succeeded", m.report.Count(models.AtomStatusSucceeded))),
	}
	if n := m.report.Count(models.AtomStatusFailed); n > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d failed", n)))
	}
	if n := m.report.Count(models.AtomStatusSkipped); n > 0 {
		parts = append(parts, skippedStyle.Render(fmt.Sprintf("%d skipped", n)))
	}
	if n := m.report.Count(models.AtomStatusAborted); n > 0 {
		parts = append(parts, abortedStyle.Render(fmt.Sprintf("%d aborted", n)))
	}

	line := fmt.Sprintf("run %s settled in %s: %s",
		m.report.RunID, m.report.Duration().Round(time.Millisecond), strings.Join(parts, ", "))
	if m.runErr != nil {
		line += "\n" + failedStyle.Render("interrupted: "+m.runErr.Error())
	}
	return "\n" + summaryStyle.Render(line)
}

// footer renders the help line.
func (m *Monitor) footer() string {
	if m.report != nil {
		return "Press q to exit"
	}
	return fmt.Sprintf("elapsed %s | q to stop the run",
		time.Since(m.startedAt).Round(time.Second))
}

// NewProgram creates a bubbletea program running the monitor. Send executor
// completion via Program.Send(DoneMsg{...}).
func NewProgram(m *Monitor) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

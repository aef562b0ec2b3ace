package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/core"
	"github.com/aristath/taskflow/internal/events"
)

// ProgressPaneModel shows per-status counts of the watched flow.
type ProgressPaneModel struct {
	flow     string
	progress core.Progress
	width    int
	height   int
	focused  bool
}

// NewProgressPaneModel creates a new progress pane model.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	if msg, ok := msg.(events.FlowProgressEvent); ok {
		m.flow = msg.Flow
		m.progress = msg.Progress
	}
	return m, nil
}

// Progress returns the last counts received.
func (m ProgressPaneModel) Progress() core.Progress {
	return m.progress
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	name := "Progress"
	if m.flow != "" {
		name = "Progress: " + m.flow
	}
	title := StyleTitle.Render(name)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	p := m.progress
	b.WriteString(fmt.Sprintf("Total:      %d\n", p.Total))
	b.WriteString(fmt.Sprintf("Successful: %s\n", StyleStatusComplete.Render(fmt.Sprint(p.Successful))))
	b.WriteString(fmt.Sprintf("Failed:     %s\n", StyleStatusFailed.Render(fmt.Sprint(p.Failed))))
	b.WriteString(fmt.Sprintf("Skipped:    %s\n", StyleStatusSkipped.Render(fmt.Sprint(p.Skipped))))
	b.WriteString(fmt.Sprintf("Incomplete: %s\n", StyleStatusPending.Render(fmt.Sprint(p.Incomplete))))
	b.WriteString("\n")

	if p.Total > 0 {
		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", renderBar(p, min(m.width-4, 40)), p.Completed(), p.Total))
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

func renderBar(p core.Progress, width int) string {
	successWidth := (p.Successful * width) / p.Total
	failedWidth := (p.Failed * width) / p.Total
	skippedWidth := (p.Skipped * width) / p.Total
	pendingWidth := width - successWidth - failedWidth - skippedWidth

	bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, successWidth)))
	bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
	bar += StyleStatusSkipped.Render(strings.Repeat("-", max(0, skippedWidth)))
	bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))
	return bar
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

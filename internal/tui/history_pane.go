package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/taskflow/internal/events"
)

const maxHistoryLines = 500

// HistoryPaneModel is a scrolling log of every flow message.
type HistoryPaneModel struct {
	lines    []string
	viewport viewport.Model
	width    int
	height   int
	focused  bool
}

// NewHistoryPaneModel creates a new history pane model.
func NewHistoryPaneModel() HistoryPaneModel {
	return HistoryPaneModel{viewport: viewport.New(0, 0)}
}

// Update handles messages for the history pane.
func (m HistoryPaneModel) Update(msg tea.Msg) (HistoryPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.focused {
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.FlowMessageEvent:
		line := formatMessage(msg.Message)
		if msg.Message.TaskID != "" {
			line = msg.Message.TaskID + " " + line
		}
		m.lines = append(m.lines, line)
		if len(m.lines) > maxHistoryLines {
			m.lines = m.lines[len(m.lines)-maxHistoryLines:]
		}
		atBottom := m.viewport.AtBottom()
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		if atBottom {
			m.viewport.GotoBottom()
		}
	}

	return m, cmd
}

// Lines returns the logged messages.
func (m HistoryPaneModel) Lines() []string {
	return m.lines
}

// View renders the history pane.
func (m HistoryPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(StyleTitle.Render("History") + "\n" + m.viewport.View())
}

// SetSize updates the pane dimensions.
func (m *HistoryPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(w-4, 10)
	m.viewport.Height = max(h-3, 3)
}

// SetFocused updates the focus state.
func (m *HistoryPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

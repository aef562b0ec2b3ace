package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/core"
	"github.com/aristath/taskflow/internal/events"
)

const taskListWidth = 28

// TaskState is what the dashboard knows about one task.
type TaskState struct {
	Snapshot core.Snapshot
	Agent    string   // Agent behind the last status change
	Lines    []string // Flow messages about this task
	Updated  time.Time
}

// TaskPaneModel shows the task list and the selected task's details.
type TaskPaneModel struct {
	tasks       map[string]*TaskState // taskID -> state
	taskOrder   []string              // first-seen order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskUpdatedEvent:
		state := m.track(msg.Snapshot.ID)
		state.Snapshot = msg.Snapshot
		state.Agent = msg.Agent
		state.Updated = msg.Timestamp
		if m.SelectedTaskID() == msg.Snapshot.ID {
			m.updateViewportContent()
		}

	case events.FlowMessageEvent:
		if msg.Message.TaskID == "" {
			break
		}
		state := m.track(msg.Message.TaskID)
		state.Lines = append(state.Lines, formatMessage(msg.Message))
		if m.SelectedTaskID() == msg.Message.TaskID {
			m.updateTag++
			tag := m.updateTag
			return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
				return tickMsg{tag: tag}
			})
		}

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// track returns the state of id, adding it to the list on first sight.
func (m *TaskPaneModel) track(id string) *TaskState {
	if state, ok := m.tasks[id]; ok {
		return state
	}
	state := &TaskState{Snapshot: core.Snapshot{ID: id, Status: core.Incomplete}}
	m.tasks[id] = state
	m.taskOrder = append(m.taskOrder, id)
	if len(m.taskOrder) == 1 {
		m.selectedIdx = 0
		m.updateViewportContent()
	}
	return state
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - taskListWidth - 4
	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(taskListWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for i, id := range m.taskOrder {
		snap := m.tasks[id].Snapshot
		name := snap.Objective
		if name == "" {
			name = id
		}
		if r := []rune(name); len(r) > width-4 {
			name = string(r[:width-7]) + "..."
		}

		line := fmt.Sprintf("%s %s", StatusIcon(snap.Status), name)
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status core.Status) string {
	switch status {
	case core.Successful:
		return StyleStatusComplete.Render("✓")
	case core.Failed:
		return StyleStatusFailed.Render("✗")
	case core.Skipped:
		return StyleStatusSkipped.Render("»")
	default:
		return StyleStatusPending.Render("○")
	}
}

// SelectedTaskID returns the id of the selected task, or "".
func (m TaskPaneModel) SelectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

// Task returns the tracked state of id.
func (m TaskPaneModel) Task(id string) (*TaskState, bool) {
	s, ok := m.tasks[id]
	return s, ok
}

func (m *TaskPaneModel) updateViewportContent() {
	state, ok := m.tasks[m.SelectedTaskID()]
	if !ok {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}
	m.viewport.SetContent(renderDetail(state))
	m.viewport.GotoBottom()
}

func renderDetail(state *TaskState) string {
	snap := state.Snapshot
	var b strings.Builder

	fmt.Fprintf(&b, "Task %s\n", snap.ID)
	if snap.Objective != "" {
		fmt.Fprintf(&b, "%s\n", snap.Objective)
	}
	fmt.Fprintf(&b, "\nStatus: %s %s\n", StatusIcon(snap.Status), snap.Status)
	if state.Agent != "" {
		fmt.Fprintf(&b, "By:     %s\n", state.Agent)
	}
	if snap.ResultType != "" {
		fmt.Fprintf(&b, "Result type: %s\n", snap.ResultType)
	}
	if len(snap.DependsOn) > 0 {
		fmt.Fprintf(&b, "Depends on: %s\n", strings.Join(snap.DependsOn, ", "))
	}
	if snap.Status == core.Successful {
		fmt.Fprintf(&b, "Result: %s\n", formatResult(snap.Result))
	}
	if snap.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", StyleStatusFailed.Render(snap.Error))
	}
	if len(state.Lines) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(state.Lines, "\n"))
	}
	return b.String()
}

func formatResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func formatMessage(msg core.Message) string {
	who := msg.Role
	switch {
	case msg.Tool != "":
		who = fmt.Sprintf("%s %s", msg.Agent, msg.Tool)
	case msg.Agent != "":
		who = fmt.Sprintf("%s %s", msg.Role, msg.Agent)
	}
	return fmt.Sprintf("[%s] %s", strings.TrimSpace(who), msg.Content)
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(m.width-taskListWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/config"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings
	saveTarget    string
	maxIterations string
	strictFlow    bool
	allowSkip     bool
	defaultAgent  string
	storePath     string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
	}
	m.loadFromConfig()
	m.buildForm()
	return m
}

// loadFromConfig copies the config into the form bindings.
func (m *SettingsPaneModel) loadFromConfig() {
	s := m.config.Settings()
	m.saveTarget = "project"
	m.maxIterations = strconv.Itoa(s.MaxTaskIterations)
	m.strictFlow = s.StrictFlowContext
	m.allowSkip = s.AllowSkipTool
	m.defaultAgent = m.config.DefaultAgent
	m.storePath = m.config.StorePath
}

func (m *SettingsPaneModel) agentOptions() []huh.Option[string] {
	names := make([]string, 0, len(m.config.Agents))
	for name := range m.config.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return append([]huh.Option[string]{huh.NewOption("(none)", "")}, huh.NewOptions(names...)...)
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.taskflow/config.json)", "global"),
					huh.NewOption("Project (.taskflow/config.json)", "project"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("maxIterations").
				Title("Max Task Iterations").
				Description("Rounds before a run gives up; 0 means unbounded.").
				Value(&m.maxIterations).
				Validate(validateIterations),

			huh.NewConfirm().
				Key("strictFlow").
				Title("Require a flow to run tasks").
				Value(&m.strictFlow),

			huh.NewConfirm().
				Key("allowSkip").
				Title("Offer the skip tool for subtasks").
				Value(&m.allowSkip),
		).Title("Run Loop"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("defaultAgent").
				Title("Default Agent").
				Options(m.agentOptions()...).
				Value(&m.defaultAgent),

			huh.NewInput().
				Key("storePath").
				Title("Store Path").
				Description("SQLite file recording task snapshots; empty disables it.").
				Value(&m.storePath).
				Placeholder(".taskflow/taskflow.db"),
		).Title("Agents and Storage"),
	)
}

func validateIterations(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("enter a whole number")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		m.visible = false
		m.saved = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.err = m.save()
		m.saved = m.err == nil
		if m.saved {
			m.visible = false
		}
	}

	return m, cmd
}

// save copies the form values into the config and writes the chosen file.
func (m *SettingsPaneModel) save() error {
	if err := m.applyFormToConfig(); err != nil {
		return err
	}
	targetPath := m.globalPath
	if m.saveTarget == "project" {
		targetPath = m.projectPath
	}
	return config.Save(m.config, targetPath)
}

// applyFormToConfig copies form field values back to the config struct.
func (m *SettingsPaneModel) applyFormToConfig() error {
	if err := validateIterations(m.maxIterations); err != nil {
		return fmt.Errorf("max task iterations: %w", err)
	}
	n, _ := strconv.Atoi(strings.TrimSpace(m.maxIterations))
	strict, allowSkip := m.strictFlow, m.allowSkip

	m.config.MaxTaskIterations = &n
	m.config.StrictFlowContext = &strict
	m.config.AllowSkipTool = &allowSkip
	m.config.DefaultAgent = m.defaultAgent
	m.config.StorePath = strings.TrimSpace(m.storePath)
	return m.config.Validate()
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil && w > 0 && h > 0 {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane. Showing it rebuilds the form
// from the current config.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil
	if v {
		m.loadFromConfig()
		m.buildForm()
		m.SetSize(m.width, m.height)
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last form submission was written to disk.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}

package tui

import (
	"path/filepath"
	"testing"

	"github.com/aristath/taskflow/internal/config"
)

func TestSettingsSave(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global", "config.json")
	projectPath := filepath.Join(dir, "project", "config.json")

	m := NewSettingsPaneModel(config.DefaultConfig(), globalPath, projectPath)
	if m.maxIterations != "100" || m.defaultAgent != "console" {
		t.Fatalf("form not loaded from config: %q %q", m.maxIterations, m.defaultAgent)
	}

	m.maxIterations = "12"
	m.strictFlow = true
	m.storePath = " run.db "
	if err := m.save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := config.Load("", projectPath)
	if err != nil {
		t.Fatal(err)
	}
	s := loaded.Settings()
	if s.MaxTaskIterations != 12 || !s.StrictFlowContext {
		t.Errorf("unexpected settings %+v", s)
	}
	if loaded.StorePath != "run.db" {
		t.Errorf("store path = %q", loaded.StorePath)
	}
}

func TestSettingsRejectsBadIterations(t *testing.T) {
	dir := t.TempDir()
	m := NewSettingsPaneModel(config.DefaultConfig(), filepath.Join(dir, "g.json"), filepath.Join(dir, "p.json"))

	for _, v := range []string{"many", "-3"} {
		m.maxIterations = v
		if err := m.save(); err == nil {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}

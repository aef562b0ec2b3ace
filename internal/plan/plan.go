// Package plan reads flow descriptions from YAML or JSON files and builds
// the corresponding task graph.
package plan

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gammazero/toposort"
	"gopkg.in/yaml.v3"
)

// TaskRefPrefix marks a context value that refers to another task's result.
const TaskRefPrefix = "$task:"

// Plan describes a flow and its tasks.
type Plan struct {
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description"`
	Instructions string     `yaml:"instructions"` // Applied to every task
	Agents       []string   `yaml:"agents"`       // Flow-level agents
	Tasks        []TaskSpec `yaml:"tasks"`
}

// TaskSpec describes one task of a plan.
type TaskSpec struct {
	ID           string         `yaml:"id"`
	Objective    string         `yaml:"objective"`
	Instructions string         `yaml:"instructions"`
	ResultType   any            `yaml:"result_type"` // Descriptor understood by schema.Parse
	Parent       string         `yaml:"parent"`
	DependsOn    []string       `yaml:"depends_on"`
	Context      map[string]any `yaml:"context"` // "$task:<id>" values refer to other tasks
	Agents       []string       `yaml:"agents"`
	UserAccess   bool           `yaml:"user_access"`
}

// Load reads a plan file. JSON is accepted since it is valid YAML.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan error: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a plan document.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}
	if p.Name == "" {
		p.Name = "plan"
	}
	return &p, nil
}

// references returns the distinct ids a task needs to exist before it is
// built: its parent, its dependencies and the tasks its context refers to.
func (s TaskSpec) references() []string {
	var all []string
	if s.Parent != "" {
		all = append(all, s.Parent)
	}
	all = append(all, s.DependsOn...)
	all = append(all, contextRefs(s.Context)...)

	seen := make(map[string]bool, len(all))
	refs := all[:0]
	for _, id := range all {
		if !seen[id] {
			seen[id] = true
			refs = append(refs, id)
		}
	}
	return refs
}

// Validate checks ids and references and returns the build order of the
// task ids. Cycles among build references are reported here; cycles that
// only appear through subtask edges are rejected when the graph is built.
func (p *Plan) Validate() ([]string, error) {
	specs := make(map[string]TaskSpec, len(p.Tasks))
	for i, s := range p.Tasks {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("task #%d has no id", i+1)
		}
		if strings.TrimSpace(s.Objective) == "" {
			return nil, fmt.Errorf("task %q has no objective", s.ID)
		}
		if _, exists := specs[s.ID]; exists {
			return nil, fmt.Errorf("task with ID %q already exists", s.ID)
		}
		specs[s.ID] = s
	}

	var edges []toposort.Edge
	for _, s := range p.Tasks {
		refs := s.references()
		if len(refs) == 0 {
			edges = append(edges, toposort.Edge{nil, s.ID})
			continue
		}
		for _, ref := range refs {
			if _, exists := specs[ref]; !exists {
				return nil, fmt.Errorf("task %q refers to non-existent task %q", s.ID, ref)
			}
			edges = append(edges, toposort.Edge{ref, s.ID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("plan contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	if len(order) != len(specs) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		missing := []string{}
		for id := range specs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}
	return order, nil
}

// contextRefs collects the task ids referenced anywhere in a context value.
func contextRefs(v any) []string {
	switch x := v.(type) {
	case string:
		if id, ok := strings.CutPrefix(x, TaskRefPrefix); ok {
			return []string{id}
		}
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var refs []string
		for _, k := range keys {
			refs = append(refs, contextRefs(x[k])...)
		}
		return refs
	case []any:
		var refs []string
		for _, item := range x {
			refs = append(refs, contextRefs(item)...)
		}
		return refs
	}
	return nil
}

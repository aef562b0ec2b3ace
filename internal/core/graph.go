package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gammazero/toposort"
)

// graphMu guards the relation sets of every task so that an edge and its
// reverse edge always change together.
var graphMu sync.RWMutex

// taskSet is an insertion-ordered set of tasks.
type taskSet struct {
	order []*Task
	index map[*Task]struct{}
}

func (s *taskSet) add(t *Task) bool {
	if s.index == nil {
		s.index = make(map[*Task]struct{})
	}
	if _, ok := s.index[t]; ok {
		return false
	}
	s.index[t] = struct{}{}
	s.order = append(s.order, t)
	return true
}

func (s *taskSet) has(t *Task) bool {
	_, ok := s.index[t]
	return ok
}

func (s *taskSet) list() []*Task {
	return append([]*Task(nil), s.order...)
}

// edge means task depends on dep.
type edge struct {
	task, dep *Task
}

// Parent returns the enclosing task, or nil.
func (t *Task) Parent() *Task {
	graphMu.RLock()
	defer graphMu.RUnlock()
	return t.parent
}

// Subtasks returns the tasks that declared t as their parent.
func (t *Task) Subtasks() []*Task {
	graphMu.RLock()
	defer graphMu.RUnlock()
	return t.subtasks.list()
}

// DependsOn returns the tasks t waits for, subtasks included.
func (t *Task) DependsOn() []*Task {
	graphMu.RLock()
	defer graphMu.RUnlock()
	return t.dependsOn.list()
}

// Downstreams returns the tasks that depend on t.
func (t *Task) Downstreams() []*Task {
	graphMu.RLock()
	defer graphMu.RUnlock()
	return t.downstreams.list()
}

// AddSubtask makes child a subtask of t. The child becomes a dependency of
// t. Adding the same subtask again is a no-op; a child that already has a
// different parent is rejected.
func (t *Task) AddSubtask(child *Task) error {
	graphMu.Lock()
	defer graphMu.Unlock()
	return t.addSubtaskLocked(child)
}

func (t *Task) addSubtaskLocked(child *Task) error {
	if child == nil {
		return configErrorf("subtask of %s is nil", t.FriendlyName())
	}
	if child.parent != nil && child.parent != t {
		return configErrorf("%s already has a parent: %s", child.FriendlyName(), child.parent.FriendlyName())
	}
	if err := checkAcyclic(edge{task: t, dep: child}); err != nil {
		return err
	}
	child.parent = t
	t.subtasks.add(child)
	t.addDependencyLocked(child)
	return nil
}

// AddDependency makes t depend on dep and records t as a downstream of dep.
// Adding an existing dependency is a no-op. Self-dependencies and edges that
// close a cycle are rejected.
func (t *Task) AddDependency(dep *Task) error {
	graphMu.Lock()
	defer graphMu.Unlock()

	if dep == nil {
		return configErrorf("dependency of %s is nil", t.FriendlyName())
	}
	if err := checkAcyclic(edge{task: t, dep: dep}); err != nil {
		return err
	}
	t.addDependencyLocked(dep)
	return nil
}

func (t *Task) addDependencyLocked(dep *Task) {
	t.dependsOn.add(dep)
	dep.downstreams.add(t)
}

// wire links a freshly built task to its parent and dependencies after
// checking all proposed edges together. register, when set, runs once the
// checks pass and before any edge is added; its error leaves the graph
// untouched.
func (t *Task) wire(parent *Task, deps []*Task, register func() error) error {
	graphMu.Lock()
	defer graphMu.Unlock()

	proposed := make([]edge, 0, len(deps)+1)
	for _, dep := range deps {
		if dep == nil {
			return configErrorf("dependency of %s is nil", t.FriendlyName())
		}
		proposed = append(proposed, edge{task: t, dep: dep})
	}
	if parent != nil {
		proposed = append(proposed, edge{task: parent, dep: t})
	}
	if err := checkAcyclic(proposed...); err != nil {
		return err
	}
	if register != nil {
		if err := register(); err != nil {
			return err
		}
	}

	for _, dep := range deps {
		t.addDependencyLocked(dep)
	}
	if parent != nil {
		t.parent = parent
		parent.subtasks.add(t)
		parent.addDependencyLocked(t)
	}
	return nil
}

// IsReady reports whether t is incomplete and every dependency is complete.
func (t *Task) IsReady() bool {
	if !t.IsIncomplete() {
		return false
	}
	for _, dep := range t.DependsOn() {
		if !dep.IsComplete() {
			return false
		}
	}
	return true
}

// checkAcyclic reports an error if adding the proposed edges to the current
// graph would create a cycle. graphMu must be held.
func checkAcyclic(proposed ...edge) error {
	var edges []toposort.Edge
	seen := make(map[*Task]bool)

	var visit func(t *Task)
	visit = func(t *Task) {
		if seen[t] {
			return
		}
		seen[t] = true
		edges = append(edges, toposort.Edge{nil, t})
		for _, dep := range t.dependsOn.order {
			edges = append(edges, toposort.Edge{dep, t})
			visit(dep)
		}
	}

	for _, e := range proposed {
		if e.task == e.dep {
			return configErrorf("%s cannot depend on itself", e.task.FriendlyName())
		}
		if e.task.dependsOn.has(e.dep) {
			continue
		}
		visit(e.task)
		visit(e.dep)
		edges = append(edges, toposort.Edge{e.dep, e.task})
	}
	if len(edges) == 0 {
		return nil
	}

	if _, err := toposort.Toposort(edges); err != nil {
		return &Error{Kind: ErrConfiguration, Msg: fmt.Sprintf("dependency cycle: %v", err), Err: err}
	}
	return nil
}

// Order returns the given tasks and everything they transitively depend on,
// dependencies first.
func Order(tasks ...*Task) ([]*Task, error) {
	graphMu.RLock()
	defer graphMu.RUnlock()

	var edges []toposort.Edge
	seen := make(map[*Task]bool)
	var visit func(t *Task)
	visit = func(t *Task) {
		if t == nil || seen[t] {
			return
		}
		seen[t] = true
		edges = append(edges, toposort.Edge{nil, t})
		for _, dep := range t.dependsOn.order {
			edges = append(edges, toposort.Edge{dep, t})
			visit(dep)
		}
	}
	for _, t := range tasks {
		visit(t)
	}
	if len(edges) == 0 {
		return nil, nil
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &Error{Kind: ErrConfiguration, Msg: fmt.Sprintf("dependency cycle: %v", err), Err: err}
	}

	order := make([]*Task, 0, len(seen))
	for _, node := range sorted {
		if t, ok := node.(*Task); ok {
			order = append(order, t)
		}
	}
	if len(order) != len(seen) {
		return nil, fmt.Errorf("topological sort lost %d tasks", len(seen)-len(order))
	}
	return order, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package graph provides dependency graph operations for agent task
// scheduling: stage partitioning and eligibility against a completed set.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrCycleDetected is returned when a dependency cycle is found in the graph.
	ErrCycleDetected = errors.New("dependency cycle detected")

	// ErrUnknownDependency is returned when a task depends on an unknown task.
	ErrUnknownDependency = errors.New("unknown dependency")
)

// Task represents one schedulable agent in the dependency graph.
type Task struct {
	ID           string
	Dependencies []string
}

// DependencyGraph manages the agent pipeline DAG. It supports stage
// partitioning (Kahn levels) and per-stage eligibility checks.
type DependencyGraph struct {
	tasks map[string]*Task
	mu    sync.RWMutex
}

// NewDependencyGraph creates a new empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		tasks: make(map[string]*Task),
	}
}

// AddTask adds a task to the graph with its dependencies.
// If dependencies is nil or empty, the task has no dependencies.
func (g *DependencyGraph) AddTask(id string, dependencies []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Copy dependencies to avoid external mutation
	deps := make([]string, len(dependencies))
	copy(deps, dependencies)

	g.tasks[id] = &Task{
		ID:           id,
		Dependencies: deps,
	}
}

// Validate checks the graph for cycles and unknown dependencies.
func (g *DependencyGraph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, task := range g.tasks {
		for _, dep := range task.Dependencies {
			if _, exists := g.tasks[dep]; !exists {
				return fmt.Errorf("%w: task %q depends on unknown task %q",
					ErrUnknownDependency, id, dep)
			}
		}
	}

	// Cycle check via DFS coloring: 0=unvisited, 1=visiting, 2=done.
	colors := make(map[string]int)
	var stack []string

	var dfs func(id string) error
	dfs = func(id string) error {
		if colors[id] == 1 {
			cycleStart := -1
			for i, n := range stack {
				if n == id {
					cycleStart = i
					break
				}
			}
			cyclePath := append(stack[cycleStart:], id)
			return &CycleError{Path: cyclePath}
		}
		if colors[id] == 2 {
			return nil
		}

		colors[id] = 1
		stack = append(stack, id)

		for _, dep := range g.tasks[id].Dependencies {
			if err := dfs(dep); err != nil {
				return err
			}
		}

		colors[id] = 2
		stack = stack[:len(stack)-1]
		return nil
	}

	for id := range g.tasks {
		if colors[id] == 0 {
			if err := dfs(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// Stages returns tasks grouped by dependency level using Kahn's algorithm.
// Stage 0 contains tasks with no dependencies; stage N contains tasks whose
// dependencies are all in stages < N. Tasks within a stage may run in
// parallel; stages execute strictly in order.
//
// Returns an error if the graph contains cycles or unknown dependencies.
func (g *DependencyGraph) Stages() ([][]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.tasks) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int)
	for id := range g.tasks {
		inDegree[id] = len(g.tasks[id].Dependencies)
	}

	// Reverse adjacency: dep -> dependents, for in-degree updates.
	dependents := make(map[string][]string)
	for id, task := range g.tasks {
		for _, dep := range task.Dependencies {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var stages [][]string
	remaining := len(g.tasks)

	for remaining > 0 {
		var current []string
		for id, degree := range inDegree {
			if degree == 0 {
				current = append(current, id)
			}
		}

		if len(current) == 0 {
			// Unreachable if Validate passed.
			return nil, ErrCycleDetected
		}

		// Deterministic ordering within a stage.
		sort.Strings(current)

		for _, id := range current {
			delete(inDegree, id)
			for _, dependent := range dependents[id] {
				inDegree[dependent]--
			}
		}

		stages = append(stages, current)
		remaining -= len(current)
	}

	return stages, nil
}

// Eligible filters candidates down to the tasks whose entire dependency set
// is contained in done. A task with a failed upstream is still eligible once
// the rest of its dependencies are terminal; the missing contribution is
// simply absent downstream.
func (g *DependencyGraph) Eligible(candidates []string, done map[string]struct{}) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for _, id := range candidates {
		task, ok := g.tasks[id]
		if !ok {
			continue
		}
		satisfied := true
		for _, dep := range task.Dependencies {
			if _, ok := done[dep]; !ok {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}
	return ready
}

// TaskCount returns the number of tasks in the graph.
func (g *DependencyGraph) TaskCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// Dependencies returns the dependency set for a task, or nil if unknown.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	task, exists := g.tasks[id]
	if !exists {
		return nil
	}

	deps := make([]string, len(task.Dependencies))
	copy(deps, task.Dependencies)
	return deps
}

package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Graph is the declared resource graph: the set of resources in declaration
// order plus the dependency edges they carry. It is immutable once built.
type Graph struct {
	resources []Resource
	byID      map[string]Resource
}

// NewGraph builds a graph from resources in declaration order. It rejects
// empty and duplicate IDs before any planning happens.
func NewGraph(resources []Resource) (*Graph, error) {
	g := &Graph{
		resources: resources,
		byID:      make(map[string]Resource, len(resources)),
	}

	for _, r := range resources {
		if r.ID() == "" {
			return nil, NewError(ErrValidation, "resource has empty ID", nil)
		}
		if _, exists := g.byID[r.ID()]; exists {
			return nil, NewError(ErrValidation,
				fmt.Sprintf("duplicate resource ID: %s", r.ID()), nil)
		}
		g.byID[r.ID()] = r
	}

	return g, nil
}

// Resources returns the declared resources in declaration order.
func (g *Graph) Resources() []Resource {
	return g.resources
}

// Plan is an ordered sequence of resources satisfying the dependency partial
// order. It is computed once per run and immutable thereafter.
type Plan struct {
	// ID uniquely identifies this plan.
	ID string

	// CreatedAt is when the plan was computed.
	CreatedAt time.Time

	// Steps holds the resources in execution order: every resource
	// appears after everything in its DependsOn set, remaining ties
	// broken by declaration order so plans are diffable across runs.
	Steps []Resource

	// levels groups step indices by topological depth; steps within a
	// level share no transitive dependency and may run concurrently.
	levels [][]int
}

// DFS colors for cycle detection.
const (
	colorUnvisited = iota
	colorInProgress
	colorDone
)

// Plan validates referential integrity and computes the topological order.
// A dangling dependsOn reference fails with ErrUnknownDependency; a cycle
// fails with ErrCycleDetected carrying one witness cycle. Both abort before
// any resource is invoked.
func (g *Graph) Plan() (*Plan, error) {
	// Referential integrity first, so a dangling reference is reported
	// as such rather than as a missing DFS node.
	for _, r := range g.resources {
		for _, dep := range r.DependsOn() {
			if _, exists := g.byID[dep]; !exists {
				return nil, NewError(ErrUnknownDependency,
					fmt.Sprintf("resource %s depends on unknown resource %s", r.ID(), dep),
					nil).WithResource(r.ID())
			}
			if dep == r.ID() {
				return nil, &EngineError{
					Kind:    ErrCycleDetected,
					Message: "resource depends on itself",
					Cycle:   []string{r.ID(), r.ID()},
				}
			}
		}
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Steps:     make([]Resource, 0, len(g.resources)),
	}

	// Depth-first topological sort with three-color marking. Resources
	// are visited in declaration order and dependencies in declared
	// order, which keeps the output deterministic.
	color := make(map[string]int, len(g.resources))
	stack := make([]string, 0, len(g.resources))

	var visit func(r Resource) *EngineError
	visit = func(r Resource) *EngineError {
		color[r.ID()] = colorInProgress
		stack = append(stack, r.ID())

		for _, dep := range r.DependsOn() {
			switch color[dep] {
			case colorUnvisited:
				if err := visit(g.byID[dep]); err != nil {
					return err
				}
			case colorInProgress:
				return &EngineError{
					Kind:    ErrCycleDetected,
					Message: "circular dependency detected",
					Cycle:   witnessCycle(stack, dep),
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[r.ID()] = colorDone
		plan.Steps = append(plan.Steps, r)
		return nil
	}

	for _, r := range g.resources {
		if color[r.ID()] == colorUnvisited {
			if err := visit(r); err != nil {
				return nil, err
			}
		}
	}

	plan.computeLevels()
	return plan, nil
}

// witnessCycle slices one concrete cycle out of the DFS stack, closed back
// on the repeated node.
func witnessCycle(stack []string, repeat string) []string {
	start := 0
	for i, id := range stack {
		if id == repeat {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(stack)-start+1)
	cycle = append(cycle, stack[start:]...)
	return append(cycle, repeat)
}

// computeLevels assigns each step its topological depth: level 0 has no
// dependencies, level n depends only on levels < n.
func (p *Plan) computeLevels() {
	depth := make(map[string]int, len(p.Steps))
	maxDepth := 0

	for _, r := range p.Steps {
		d := 0
		for _, dep := range r.DependsOn() {
			if dd := depth[dep] + 1; dd > d {
				d = dd
			}
		}
		depth[r.ID()] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	p.levels = make([][]int, maxDepth+1)
	for i, r := range p.Steps {
		d := depth[r.ID()]
		p.levels[d] = append(p.levels[d], i)
	}
}

// Levels returns step indices grouped by topological depth. Steps within a
// level share no dependency relationship.
func (p *Plan) Levels() [][]int {
	return p.levels
}

// ToDOT renders the plan's dependency graph in DOT format for Graphviz.
func (p *Plan) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph plan {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for _, r := range p.Steps {
		sb.WriteString(fmt.Sprintf("  %q [label=\"%s\\n%s\"];\n", r.ID(), r.ID(), r.Kind()))
	}
	sb.WriteString("\n")
	for _, r := range p.Steps {
		for _, dep := range r.DependsOn() {
			sb.WriteString(fmt.Sprintf("  %q -> %q;\n", dep, r.ID()))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeResource is a minimal Resource for planner tests; its behaviors are
// configured per test in executor_test.go.
type fakeResource struct {
	id       string
	kind     string
	deps     []string
	identity string

	checkFn func(ctx context.Context) (Observation, error)
	applyFn func(ctx context.Context) error

	checkCalls int
	applyCalls int
}

func (f *fakeResource) ID() string          { return f.id }
func (f *fakeResource) DependsOn() []string { return f.deps }

func (f *fakeResource) Kind() string {
	if f.kind == "" {
		return "fake"
	}
	return f.kind
}

func (f *fakeResource) Identity() string {
	if f.identity == "" {
		return "fake:" + f.id
	}
	return f.identity
}

func (f *fakeResource) Check(ctx context.Context) (Observation, error) {
	f.checkCalls++
	if f.checkFn != nil {
		return f.checkFn(ctx)
	}
	return Observation{Converged: true}, nil
}

func (f *fakeResource) Apply(ctx context.Context) error {
	f.applyCalls++
	if f.applyFn != nil {
		return f.applyFn(ctx)
	}
	return nil
}

func res(id string, deps ...string) *fakeResource {
	return &fakeResource{id: id, deps: deps}
}

func mustPlan(t *testing.T, resources ...Resource) *Plan {
	t.Helper()
	g, err := NewGraph(resources)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	p, err := g.Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	return p
}

func planIDs(p *Plan) []string {
	ids := make([]string, len(p.Steps))
	for i, r := range p.Steps {
		ids[i] = r.ID()
	}
	return ids
}

func TestPlanOrdersDependenciesFirst(t *testing.T) {
	p := mustPlan(t,
		res("app", "config", "pkg"),
		res("config", "pkg"),
		res("pkg"),
	)

	pos := make(map[string]int)
	for i, id := range planIDs(p) {
		pos[id] = i
	}

	if pos["pkg"] > pos["config"] {
		t.Errorf("pkg must precede config, got order %v", planIDs(p))
	}
	if pos["config"] > pos["app"] {
		t.Errorf("config must precede app, got order %v", planIDs(p))
	}
}

func TestPlanIsDeterministicAcrossRuns(t *testing.T) {
	build := func() []Resource {
		return []Resource{
			res("c"),
			res("a"),
			res("b"),
			res("d", "a", "c"),
		}
	}

	first := planIDs(mustPlan(t, build()...))
	for i := 0; i < 20; i++ {
		got := planIDs(mustPlan(t, build()...))
		if strings.Join(got, ",") != strings.Join(first, ",") {
			t.Fatalf("plan order not deterministic: %v vs %v", first, got)
		}
	}
}

func TestPlanIndependentResourcesKeepDeclarationOrder(t *testing.T) {
	p := mustPlan(t, res("zeta"), res("alpha"), res("mid"))

	got := strings.Join(planIDs(p), ",")
	if got != "zeta,alpha,mid" {
		t.Errorf("expected declaration order zeta,alpha,mid, got %s", got)
	}
}

func TestPlanUnknownDependency(t *testing.T) {
	g, err := NewGraph([]Resource{res("a", "ghost")})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	_, err = g.Plan()
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
	if KindOf(err) != ErrUnknownDependency {
		t.Errorf("expected ErrUnknownDependency, got %v", KindOf(err))
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error should name the missing dependency: %v", err)
	}
}

func TestPlanCycleDetected(t *testing.T) {
	g, err := NewGraph([]Resource{
		res("a", "c"),
		res("b", "a"),
		res("c", "b"),
	})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	_, err = g.Plan()
	if err == nil {
		t.Fatal("expected error for cycle")
	}

	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *EngineError, got %T", err)
	}
	if ee.Kind != ErrCycleDetected {
		t.Errorf("expected ErrCycleDetected, got %v", ee.Kind)
	}
	if len(ee.Cycle) < 3 {
		t.Fatalf("expected a witness cycle, got %v", ee.Cycle)
	}
	if ee.Cycle[0] != ee.Cycle[len(ee.Cycle)-1] {
		t.Errorf("witness cycle should close on itself: %v", ee.Cycle)
	}
}

func TestPlanSelfDependency(t *testing.T) {
	g, err := NewGraph([]Resource{res("a", "a")})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	_, err = g.Plan()
	if KindOf(err) != ErrCycleDetected {
		t.Errorf("self-dependency should be a cycle, got %v", err)
	}
}

func TestNewGraphRejectsDuplicateIDs(t *testing.T) {
	_, err := NewGraph([]Resource{res("a"), res("a")})
	if KindOf(err) != ErrValidation {
		t.Errorf("expected ErrValidation for duplicate IDs, got %v", err)
	}
}

func TestPlanLevels(t *testing.T) {
	p := mustPlan(t,
		res("a"),
		res("b"),
		res("c", "a"),
		res("d", "a", "b"),
		res("e", "c"),
	)

	levels := p.Levels()
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	if len(levels[0]) != 2 {
		t.Errorf("expected 2 roots in level 0, got %d", len(levels[0]))
	}

	// Every step's dependencies must sit in strictly earlier levels.
	levelOf := make(map[string]int)
	for lvl, idxs := range levels {
		for _, i := range idxs {
			levelOf[p.Steps[i].ID()] = lvl
		}
	}
	for _, r := range p.Steps {
		for _, dep := range r.DependsOn() {
			if levelOf[dep] >= levelOf[r.ID()] {
				t.Errorf("%s (level %d) depends on %s (level %d)",
					r.ID(), levelOf[r.ID()], dep, levelOf[dep])
			}
		}
	}
}

func TestPlanToDOT(t *testing.T) {
	p := mustPlan(t, res("a"), res("b", "a"))

	dot := p.ToDOT()
	if !strings.Contains(dot, "digraph") {
		t.Errorf("expected DOT output, got %q", dot)
	}
	if !strings.Contains(dot, `"a" -> "b"`) {
		t.Errorf("expected edge a -> b in DOT output:\n%s", dot)
	}
}

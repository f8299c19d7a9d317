package dcgan

import (
	"testing"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

func TestNewSolver(t *testing.T) {
	tests := []struct {
		kind    OptimizerKind
		lr      float64
		wantErr bool
		check   func(gorgonia.Solver) bool
	}{
		{OptimizerAdam, 1e-4, false, func(s gorgonia.Solver) bool { _, ok := s.(*gorgonia.AdamSolver); return ok }},
		{"", 1e-4, false, func(s gorgonia.Solver) bool { _, ok := s.(*gorgonia.AdamSolver); return ok }},
		{OptimizerRMSProp, 1e-3, false, func(s gorgonia.Solver) bool { _, ok := s.(*gorgonia.RMSPropSolver); return ok }},
		{OptimizerSGD, 1e-2, false, func(s gorgonia.Solver) bool { _, ok := s.(*gorgonia.VanillaSolver); return ok }},
		{OptimizerKind("adagrad"), 1e-2, true, nil},
		{OptimizerAdam, 0, true, nil},
		{OptimizerSGD, -1, true, nil},
	}
	for _, tt := range tests {
		solver, err := NewSolver(OptimizerConfig{Kind: tt.kind, LearnRate: tt.lr})
		if tt.wantErr {
			if err == nil {
				t.Fatalf("kind '%s', lr %v: expected error", tt.kind, tt.lr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("kind '%s': %v", tt.kind, err)
		}
		if !tt.check(solver) {
			t.Fatalf("kind '%s': unexpected solver %T", tt.kind, solver)
		}
	}
}

func TestNewOptimizerEmptyParams(t *testing.T) {
	if _, err := NewOptimizer("empty", nil, DefaultOptimizerConfig()); err == nil {
		t.Fatal("optimizer without parameters must fail")
	}
}

func TestCheckDisjoint(t *testing.T) {
	g := gorgonia.NewGraph()
	a := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("a"))
	b := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("b"))
	c := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("c"))
	if err := checkDisjoint(gorgonia.Nodes{a, b}, gorgonia.Nodes{c}); err != nil {
		t.Fatalf("disjoint sets: %v", err)
	}
	if err := checkDisjoint(gorgonia.Nodes{a, b}, gorgonia.Nodes{c, b}); !errors.Is(err, ErrParameterOverlap) {
		t.Fatalf("expected overlap error, got %v", err)
	}
}

package dcgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

type OptimizerKind string

const (
	OptimizerAdam    = OptimizerKind("adam")
	OptimizerRMSProp = OptimizerKind("rmsprop")
	OptimizerSGD     = OptimizerKind("sgd")
)

// OptimizerConfig Hyperparameters of gradient descent update rule.
// Zero Beta1, Beta2 and Epsilon fall back to defaults of DefaultOptimizerConfig
type OptimizerConfig struct {
	Kind      OptimizerKind
	LearnRate float64
	Beta1     float64
	Beta2     float64
	Epsilon   float64
}

// DefaultOptimizerConfig Adam with learning rate 1e-4
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		Kind:      OptimizerAdam,
		LearnRate: 1e-4,
		Beta1:     0.9,
		Beta2:     0.999,
		Epsilon:   1e-7,
	}
}

// NewSolver Creates gorgonia solver for provided config
func NewSolver(cfg OptimizerConfig) (gorgonia.Solver, error) {
	if cfg.LearnRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", cfg.LearnRate)
	}
	def := DefaultOptimizerConfig()
	if cfg.Beta1 == 0 {
		cfg.Beta1 = def.Beta1
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = def.Beta2
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = def.Epsilon
	}
	switch cfg.Kind {
	case OptimizerAdam, "":
		return gorgonia.NewAdamSolver(gorgonia.WithLearnRate(cfg.LearnRate), gorgonia.WithBeta1(cfg.Beta1), gorgonia.WithBeta2(cfg.Beta2), gorgonia.WithEps(cfg.Epsilon)), nil
	case OptimizerRMSProp:
		return gorgonia.NewRMSPropSolver(gorgonia.WithLearnRate(cfg.LearnRate), gorgonia.WithEps(cfg.Epsilon)), nil
	case OptimizerSGD:
		return gorgonia.NewVanillaSolver(gorgonia.WithLearnRate(cfg.LearnRate)), nil
	default:
		return nil, fmt.Errorf("optimizer '%s' is not handled", cfg.Kind)
	}
}

// Optimizer Stateful update rule bound to exactly one parameter set.
// Solver state (moments, step counter) lives for the whole run and is never shared with another Optimizer.
type Optimizer struct {
	name   string
	params gorgonia.Nodes
	solver gorgonia.Solver
	steps  int
}

// NewOptimizer Creates optimizer owning provided parameters
func NewOptimizer(name string, params gorgonia.Nodes, cfg OptimizerConfig) (*Optimizer, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("[%s optimizer] parameter set is empty", name)
	}
	solver, err := NewSolver(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "[%s optimizer]", name)
	}
	return &Optimizer{
		name:   name,
		params: params,
		solver: solver,
	}, nil
}

// Apply Applies gradients accumulated in dual values of owned parameters
func (o *Optimizer) Apply() error {
	if err := o.solver.Step(gorgonia.NodesToValueGrads(o.params)); err != nil {
		return errors.Wrapf(err, "[%s optimizer] Can't apply gradients", o.name)
	}
	o.steps++
	return nil
}

// Steps Returns number of applied updates
func (o *Optimizer) Steps() int {
	return o.steps
}

// Params Returns owned parameter set
func (o *Optimizer) Params() gorgonia.Nodes {
	return o.params
}

func checkDisjoint(a, b gorgonia.Nodes) error {
	seen := make(map[*gorgonia.Node]struct{}, len(a))
	for _, n := range a {
		seen[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := seen[n]; ok {
			return errors.Wrapf(ErrParameterOverlap, "node '%s'", n.Name())
		}
	}
	return nil
}

package dcgan

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// TrainerConfig Knobs of adversarial training step
//
// BatchSize - number of real (and generated) samples per step
// GeneratorOptimizer, DiscriminatorOptimizer - update rules of each network
// Rand - source of noise. If nil then global source of math/rand is used
//
type TrainerConfig struct {
	BatchSize              int
	GeneratorOptimizer     OptimizerConfig
	DiscriminatorOptimizer OptimizerConfig
	Rand                   *rand.Rand
}

// Losses Values of both objectives after forward pass of one step
type Losses struct {
	Generator     float64
	Discriminator float64
}

// Trainer Adversarial training step compiled into a single tape.
//
// Graph layout:
//
//	noise -> generator -> generated
//	concat(real, generated) -> discriminator -> [real logits; fake logits] -> discriminator loss
//	generated -> discriminator -> fake logits -> generator loss
//
// Gorgonia keeps one derivative per node, so the discriminator objective and the generator objective
// must not share intermediate nodes on their gradient paths: discriminator is applied twice with the same
// learnables (once on concatenated batch, once on generated batch). Generator loss is differentiated with
// regard to generator learnables only, discriminator loss with regard to discriminator learnables only.
// Both gradients are produced by one run of the tape, before either optimizer is applied.
//
// Since the discriminator is applied twice, stochastic layers (dropout) draw independent masks for each
// application: the two objectives see the same generated batch, but not the same dropout masks.
// Sharing one set of fake logits between both objectives makes the second differentiation pass fail
// (gorgonia keeps a single derivative per node).
//
// Trainer is not safe for concurrent use.
//
type Trainer struct {
	graph         *gorgonia.ExprGraph
	generator     *GeneratorNet
	discriminator *DiscriminatorNet

	batchSize int
	noiseDim  int

	noiseInput *gorgonia.Node
	realInput  *gorgonia.Node

	generated         *gorgonia.Node
	generatorLoss     *gorgonia.Node
	discriminatorLoss *gorgonia.Node

	generatedVal         gorgonia.Value
	generatorLossVal     gorgonia.Value
	discriminatorLossVal gorgonia.Value

	vm               gorgonia.VM
	generatorOpt     *Optimizer
	discriminatorOpt *Optimizer

	sink MetricsSink
	rng  *rand.Rand
}

// NewTrainer Builds training step on graph g where both networks have been defined
//
// sink - receives both losses every step. If nil then DiscardSink is used
//
func NewTrainer(g *gorgonia.ExprGraph, definedGenerator *GeneratorNet, definedDiscriminator *DiscriminatorNet, cfg TrainerConfig, sink MetricsSink) (*Trainer, error) {
	if definedGenerator == nil || definedDiscriminator == nil {
		return nil, ErrNilNetwork
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if !definedGenerator.ImageShape().Eq(definedDiscriminator.ImageShape()) {
		return nil, errors.Wrapf(ErrShapeMismatch, "generator produces %v images, discriminator accepts %v", definedGenerator.ImageShape(), definedDiscriminator.ImageShape())
	}
	generatorParams := definedGenerator.Learnables()
	discriminatorParams := definedDiscriminator.Learnables()
	if err := checkDisjoint(generatorParams, discriminatorParams); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = DiscardSink
	}

	t := &Trainer{
		graph:         g,
		generator:     definedGenerator,
		discriminator: definedDiscriminator,
		batchSize:     cfg.BatchSize,
		noiseDim:      definedGenerator.NoiseDim(),
		sink:          sink,
		rng:           cfg.Rand,
	}

	imageShape := append(tensor.Shape{cfg.BatchSize}, definedGenerator.ImageShape()...)
	t.noiseInput = gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(cfg.BatchSize, t.noiseDim), gorgonia.WithName("generator_input"))
	t.realInput = gorgonia.NewTensor(g, gorgonia.Float64, imageShape.Dims(), gorgonia.WithShape(imageShape...), gorgonia.WithName("discriminator_real_input"))

	var err error
	t.generated, err = definedGenerator.Fwd(t.noiseInput, true)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward noise through generator")
	}

	// Discriminator objective: real and generated samples in one batch
	allSamples, err := gorgonia.Concat(0, t.realInput, t.generated)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concatenate real and generated samples")
	}
	allLogits, err := definedDiscriminator.Fwd(allSamples, true)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward samples through discriminator")
	}
	realLogits, err := gorgonia.Slice(allLogits, gorgonia.S(0, cfg.BatchSize))
	if err != nil {
		return nil, errors.Wrap(err, "Can't select logits of real samples")
	}
	fakeLogitsDiscriminator, err := gorgonia.Slice(allLogits, gorgonia.S(cfg.BatchSize, 2*cfg.BatchSize))
	if err != nil {
		return nil, errors.Wrap(err, "Can't select logits of generated samples")
	}
	t.discriminatorLoss, err = DiscriminatorLoss(realLogits, fakeLogitsDiscriminator)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define discriminator loss")
	}
	gorgonia.WithName("discriminator_loss")(t.discriminatorLoss)

	// Generator objective: gradient flows through discriminator into generated samples
	fakeLogits, err := definedDiscriminator.Fwd(t.generated, true)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward generated samples through discriminator")
	}
	t.generatorLoss, err = GeneratorLoss(fakeLogits)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define generator loss")
	}
	gorgonia.WithName("generator_loss")(t.generatorLoss)

	if _, err = gorgonia.Grad(t.generatorLoss, generatorParams...); err != nil {
		return nil, errors.Wrap(err, "Can't define gradients of generator loss")
	}
	if _, err = gorgonia.Grad(t.discriminatorLoss, discriminatorParams...); err != nil {
		return nil, errors.Wrap(err, "Can't define gradients of discriminator loss")
	}

	gorgonia.Read(t.generatorLoss, &t.generatorLossVal)
	gorgonia.Read(t.discriminatorLoss, &t.discriminatorLossVal)
	gorgonia.Read(t.generated, &t.generatedVal)

	t.generatorOpt, err = NewOptimizer("generator", generatorParams, cfg.GeneratorOptimizer)
	if err != nil {
		return nil, err
	}
	t.discriminatorOpt, err = NewOptimizer("discriminator", discriminatorParams, cfg.DiscriminatorOptimizer)
	if err != nil {
		return nil, err
	}

	learnables := make(gorgonia.Nodes, 0, len(generatorParams)+len(discriminatorParams))
	learnables = append(learnables, generatorParams...)
	learnables = append(learnables, discriminatorParams...)
	t.vm = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(learnables...))
	return t, nil
}

// Step Does one adversarial training step on provided batch of real images [batchSize, H, W, C]
//
// step - index used for metrics attribution only
//
// Shape violations are reported before anything is mutated. Failure of the tape leaves both
// parameter sets untouched: optimizers run only after both gradients have been computed.
//
func (t *Trainer) Step(images tensor.Tensor, step int) (Losses, error) {
	if images == nil {
		return Losses{}, errors.Wrap(ErrShapeMismatch, "real images are nil")
	}
	if !images.Shape().Eq(t.realInput.Shape()) {
		return Losses{}, errors.Wrapf(ErrShapeMismatch, "real images must have shape %v, got %v", t.realInput.Shape(), images.Shape())
	}

	noise := NormRandDense(t.rng, t.batchSize, t.noiseDim)
	if err := gorgonia.Let(t.noiseInput, noise); err != nil {
		return Losses{}, errors.Wrap(err, "Can't init noise input")
	}
	if err := gorgonia.Let(t.realInput, images); err != nil {
		return Losses{}, errors.Wrap(err, "Can't init real images input")
	}

	defer t.vm.Reset()
	if err := t.vm.RunAll(); err != nil {
		return Losses{}, errors.Wrap(err, "Can't run training tape")
	}

	var losses Losses
	var err error
	if losses.Generator, err = scalarValue(t.generatorLossVal); err != nil {
		return Losses{}, errors.Wrap(err, "Can't read generator loss")
	}
	if losses.Discriminator, err = scalarValue(t.discriminatorLossVal); err != nil {
		return Losses{}, errors.Wrap(err, "Can't read discriminator loss")
	}
	if err = t.sink.Emit(MetricGeneratorLoss, losses.Generator, step); err != nil {
		return losses, errors.Wrap(err, "Can't emit generator loss")
	}
	if err = t.sink.Emit(MetricDiscriminatorLoss, losses.Discriminator, step); err != nil {
		return losses, errors.Wrap(err, "Can't emit discriminator loss")
	}

	if err = t.generatorOpt.Apply(); err != nil {
		return losses, err
	}
	if err = t.discriminatorOpt.Apply(); err != nil {
		return losses, err
	}
	if err = t.generator.UpdateStatistics(); err != nil {
		return losses, errors.Wrap(err, "Can't update generator statistics")
	}
	if err = t.discriminator.UpdateStatistics(); err != nil {
		return losses, errors.Wrap(err, "Can't update discriminator statistics")
	}
	return losses, nil
}

// BatchSize Returns number of samples per step
func (t *Trainer) BatchSize() int {
	return t.batchSize
}

// Generated Returns copy of images produced by generator during last step. Nil before first step
func (t *Trainer) Generated() *tensor.Dense {
	dense, ok := t.generatedVal.(*tensor.Dense)
	if !ok || dense == nil {
		return nil
	}
	return dense.Clone().(*tensor.Dense)
}

// GeneratorParams Returns learnables of generator (ordered)
func (t *Trainer) GeneratorParams() gorgonia.Nodes {
	return t.generatorOpt.Params()
}

// DiscriminatorParams Returns learnables of discriminator (ordered)
func (t *Trainer) DiscriminatorParams() gorgonia.Nodes {
	return t.discriminatorOpt.Params()
}

// Close Releases tape machine
func (t *Trainer) Close() error {
	return t.vm.Close()
}

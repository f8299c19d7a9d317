package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	dcgan "github.com/LdDl/dcgan-go"
	"github.com/LdDl/dcgan-go/checkpoint"
	"github.com/LdDl/dcgan-go/config"
	"github.com/LdDl/dcgan-go/dataset"
	"github.com/LdDl/dcgan-go/metrics"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	generatorDir     = "generator"
	discriminatorDir = "discriminator"
	samplesColumns   = 16
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (defaults are used when empty)")
	dataDir := flag.String("data-dir", "", "Override directory with IDX files")
	synthetic := flag.Bool("synthetic", false, "Train on blank synthetic images instead of IDX files")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	noiseDim := flag.Int("noise-dim", 0, "Size of noise vector")
	architecture := flag.String("architecture", "", "Discriminator architecture: dense or conv")
	optimizer := flag.String("optimizer", "", "Optimizer: adam, rmsprop or sgd")
	learningRate := flag.Float64("learning-rate", 0, "Learning rate of both optimizers")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logDir := flag.String("log-dir", "", "Root directory of per-run metrics")
	logEvery := flag.Int("log-every", 0, "Log every N steps")
	resume := flag.String("resume", "", "Checkpoint directory to restore parameters and step index from")
	firstStep := flag.Int("first-step", -1, "Index of the first training step (defaults to 0, or to the step stored in -resume checkpoint)")
	runID := flag.String("run-id", "", "Run identifier (defaults to start timestamp)")

	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	cfg.ApplyOverrides(config.Overrides{
		DataDir:      *dataDir,
		Synthetic:    *synthetic,
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		NoiseDim:     *noiseDim,
		Architecture: *architecture,
		Optimizer:    *optimizer,
		LearningRate: *learningRate,
		Seed:         *seed,
		LogDir:       *logDir,
		LogEvery:     *logEvery,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if *runID == "" {
		*runID = time.Now().Format("20060102-150405")
	}

	logHost()

	set, err := loadSet(cfg)
	if err != nil {
		log.Fatalf("failed to prepare data: %v", err)
	}
	log.Printf("samples=%d sample_shape=%v", set.DataLength, set.SampleShape())

	// Separate sources so that changing one consumer does not shift the others
	initRand := rand.New(rand.NewSource(cfg.Seed))
	noiseRand := rand.New(rand.NewSource(cfg.Seed + 1))
	shuffleRand := rand.New(rand.NewSource(cfg.Seed + 2))

	g := gorgonia.NewGraph()
	definedGenerator, definedDiscriminator, err := defineNetworks(g, initRand, cfg)
	if err != nil {
		log.Fatalf("failed to define networks: %v", err)
	}
	nextStep := 0
	if *resume != "" {
		nextStep, err = restoreCheckpoint(*resume, definedGenerator, definedDiscriminator)
		if err != nil {
			log.Fatalf("failed to restore checkpoint: %v", err)
		}
		log.Printf("restored parameters from %s, next step is %d", *resume, nextStep)
	}
	if *firstStep >= 0 {
		nextStep = *firstStep
	}

	runSinks, err := metrics.NewRunSinks(cfg.LogDir, *runID)
	if err != nil {
		log.Fatalf("failed to prepare metrics: %v", err)
	}
	defer runSinks.Close()
	if err := config.Save(filepath.Join(runSinks.Dir, "config.yaml"), cfg); err != nil {
		log.Fatalf("failed to save config: %v", err)
	}
	recorder := metrics.NewRecorder()
	summary := metrics.NewSummary(cfg.LogEvery)
	sink := metrics.Multi{
		runSinks,
		recorder,
		summary,
		metrics.NewLogSink(nil, cfg.LogEvery),
	}

	trainer, err := dcgan.NewTrainer(g, definedGenerator, definedDiscriminator, dcgan.TrainerConfig{
		BatchSize:              cfg.BatchSize,
		GeneratorOptimizer:     cfg.OptimizerConfig(),
		DiscriminatorOptimizer: cfg.OptimizerConfig(),
		Rand:                   noiseRand,
	}, sink)
	if err != nil {
		log.Fatalf("failed to prepare trainer: %v", err)
	}
	defer trainer.Close()

	batcher, err := dataset.NewBatcher(set, cfg.BatchSize, shuffleRand)
	if err != nil {
		log.Fatalf("failed to prepare batches: %v", err)
	}
	log.Printf("run=%s epochs=%d batches_per_epoch=%d architecture=%s optimizer=%s", *runID, cfg.Epochs, batcher.Len(), cfg.Architecture, cfg.Optimizer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkpointRoot := filepath.Join(cfg.CheckpointDir, *runID)
	st := time.Now()
	epochStart := time.Now()
	nextStep, err = dcgan.Fit(ctx, trainer, batcher, dcgan.FitConfig{
		Epochs:    cfg.Epochs,
		FirstStep: nextStep,
		OnStep: func(step int, _ dcgan.Losses) error {
			nextStep = step + 1
			return nil
		},
		OnEpoch: func(epoch int, last dcgan.Losses) error {
			log.Printf("epoch=%d generator_loss=%.6f discriminator_loss=%.6f took=%v", epoch+1, last.Generator, last.Discriminator, time.Since(epochStart))
			for _, s := range summary.Stats() {
				log.Printf("\t%s: mean=%.6f std=%.6f over last %d steps", s.Name, s.Mean, s.StdDev, s.Count)
			}
			epochStart = time.Now()
			if cfg.SampleEvery > 0 && (epoch+1)%cfg.SampleEvery == 0 {
				if err := saveSamples(trainer.Generated(), filepath.Join(runSinks.Dir, "samples"), epoch+1); err != nil {
					return err
				}
			}
			if cfg.CheckpointEvery > 0 && (epoch+1)%cfg.CheckpointEvery == 0 {
				if err := saveCheckpoint(checkpointRoot, definedGenerator, definedDiscriminator, nextStep); err != nil {
					return err
				}
				log.Printf("checkpoint saved to %s (next step %d)", checkpointRoot, nextStep)
			}
			return nil
		},
	})
	switch {
	case errors.Is(err, context.Canceled):
		log.Printf("training interrupted after %v", time.Since(st))
	case err != nil:
		log.Fatalf("training failed: %v", err)
	default:
		log.Printf("training finished in %v", time.Since(st))
	}

	if err := saveCheckpoint(checkpointRoot, definedGenerator, definedDiscriminator, nextStep); err != nil {
		log.Fatalf("failed to save final checkpoint: %v", err)
	}
	if len(recorder.Records()) > 0 {
		if err := metrics.PlotLosses(recorder, filepath.Join(runSinks.Dir, "losses.png")); err != nil {
			log.Fatalf("failed to plot losses: %v", err)
		}
	}
	log.Printf("metrics and plots are in %s, checkpoint is in %s", runSinks.Dir, checkpointRoot)
}

// loadSet Reads IDX images (optionally a single class of them) or makes blank synthetic set
func loadSet(cfg *config.Config) (*dataset.Set, error) {
	if cfg.Synthetic {
		return dataset.Blank(cfg.SyntheticSize, cfg.ImageHeight, cfg.ImageWidth, cfg.ImageChannels), nil
	}
	images, err := dataset.LoadIDXImages(cfg.ImagesPath())
	if err != nil {
		return nil, err
	}
	set, err := dataset.NewSet(images)
	if err != nil {
		return nil, err
	}
	expected := tensor.Shape{cfg.ImageHeight, cfg.ImageWidth, cfg.ImageChannels}
	if !set.SampleShape().Eq(expected) {
		return nil, errors.Wrapf(dcgan.ErrShapeMismatch, "config expects %v images, file holds %v", expected, set.SampleShape())
	}
	if cfg.Class < 0 {
		return set, nil
	}
	labels, err := dataset.LoadIDXLabels(cfg.LabelsPath())
	if err != nil {
		return nil, err
	}
	return dataset.Filter(set, labels, byte(cfg.Class))
}

func defineNetworks(g *gorgonia.ExprGraph, rng *rand.Rand, cfg *config.Config) (*dcgan.GeneratorNet, *dcgan.DiscriminatorNet, error) {
	imageShape := tensor.Shape{cfg.ImageHeight, cfg.ImageWidth, cfg.ImageChannels}
	definedGenerator, err := dcgan.DenseGenerator(g, rng, cfg.NoiseDim, imageShape, cfg.Hidden, cfg.LeakyAlpha, cfg.BatchNorm)
	if err != nil {
		return nil, nil, errors.Wrap(err, "generator")
	}
	var definedDiscriminator *dcgan.DiscriminatorNet
	switch cfg.Architecture {
	case config.ArchitectureConv:
		definedDiscriminator, err = dcgan.ConvDiscriminator(g, rng, imageShape, cfg.Dropout, cfg.LeakyAlpha)
	default:
		definedDiscriminator, err = dcgan.DenseDiscriminator(g, rng, imageShape, cfg.Hidden, cfg.Dropout, cfg.LeakyAlpha)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "discriminator")
	}
	return definedGenerator, definedDiscriminator, nil
}

func saveSamples(generated *tensor.Dense, dir string, epoch int) error {
	if generated == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "Can't create samples directory")
	}
	return metrics.PlotSamples(generated, samplesColumns, filepath.Join(dir, fmt.Sprintf("epoch_%04d.png", epoch)))
}

// checkpointNodes Learnables followed by running statistics
func checkpointNodes(learnables, statistics gorgonia.Nodes) gorgonia.Nodes {
	nodes := make(gorgonia.Nodes, 0, len(learnables)+len(statistics))
	nodes = append(nodes, learnables...)
	return append(nodes, statistics...)
}

func saveCheckpoint(root string, gen *dcgan.GeneratorNet, dis *dcgan.DiscriminatorNet, nextStep int) error {
	if err := checkpoint.Save(filepath.Join(root, generatorDir), checkpointNodes(gen.Learnables(), gen.Statistics())); err != nil {
		return err
	}
	if err := checkpoint.Save(filepath.Join(root, discriminatorDir), checkpointNodes(dis.Learnables(), dis.Statistics())); err != nil {
		return err
	}
	return checkpoint.SaveStep(root, nextStep)
}

// restoreCheckpoint Loads parameters in place and returns index of the next step.
// Checkpoints without step file resume from step 0
func restoreCheckpoint(root string, gen *dcgan.GeneratorNet, dis *dcgan.DiscriminatorNet) (int, error) {
	if err := checkpoint.Load(filepath.Join(root, generatorDir), checkpointNodes(gen.Learnables(), gen.Statistics())); err != nil {
		return 0, errors.Wrap(err, "generator")
	}
	if err := checkpoint.Load(filepath.Join(root, discriminatorDir), checkpointNodes(dis.Learnables(), dis.Statistics())); err != nil {
		return 0, errors.Wrap(err, "discriminator")
	}
	step, err := checkpoint.LoadStep(root)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("no step file in %s, starting from step 0", root)
		return 0, nil
	}
	return step, err
}

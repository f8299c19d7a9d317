package dcgan

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// BatchSource Provides fixed-size batches of real images
type BatchSource interface {
	// Len Returns number of batches in one epoch
	Len() int
	// Batch Returns i-th batch of current epoch
	Batch(i int) (tensor.Tensor, error)
}

// Shuffler is implemented by sources which reorder samples between epochs
type Shuffler interface {
	Shuffle()
}

// FitConfig Outer loop knobs
//
// Epochs - number of passes over source
// FirstStep - step index of first batch, useful when resuming
// OnStep - called after every successful step (optional)
// OnEpoch - called after every epoch with losses of last step (optional)
//
type FitConfig struct {
	Epochs    int
	FirstStep int
	OnStep    func(step int, losses Losses) error
	OnEpoch   func(epoch int, last Losses) error
}

// Fit Repeats training step once per batch across epochs. Step index grows monotonically across epochs.
// Cancellation is checked between steps only: a started step always runs to completion.
// Returns index of the step which would be executed next.
func Fit(ctx context.Context, t *Trainer, src BatchSource, cfg FitConfig) (int, error) {
	if cfg.Epochs <= 0 {
		return cfg.FirstStep, fmt.Errorf("epochs must be positive, got %d", cfg.Epochs)
	}
	if src.Len() == 0 {
		return cfg.FirstStep, fmt.Errorf("batch source is empty")
	}
	step := cfg.FirstStep
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if shuffler, ok := src.(Shuffler); ok {
			shuffler.Shuffle()
		}
		var last Losses
		for b := 0; b < src.Len(); b++ {
			if err := ctx.Err(); err != nil {
				return step, err
			}
			images, err := src.Batch(b)
			if err != nil {
				return step, errors.Wrapf(err, "Can't prepare batch #%d of epoch %d", b, epoch)
			}
			last, err = t.Step(images, step)
			if err != nil {
				return step, errors.Wrapf(err, "Step %d (epoch %d, batch #%d) failed", step, epoch, b)
			}
			step++
			if cfg.OnStep != nil {
				if err := cfg.OnStep(step-1, last); err != nil {
					return step, err
				}
			}
		}
		if cfg.OnEpoch != nil {
			if err := cfg.OnEpoch(epoch, last); err != nil {
				return step, err
			}
		}
	}
	return step, nil
}

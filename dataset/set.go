package dataset

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Set Real images [n, H, W, C]
type Set struct {
	Images     *tensor.Dense
	DataLength int
}

// NewSet Wraps images tensor of shape [n, H, W, C]
func NewSet(images *tensor.Dense) (*Set, error) {
	if images == nil {
		return nil, fmt.Errorf("images are nil")
	}
	if images.Dims() != 4 {
		return nil, fmt.Errorf("images must have shape [n, H, W, C], got %v", images.Shape())
	}
	if _, ok := images.Data().([]float64); !ok {
		return nil, fmt.Errorf("images must be float64, got %v", images.Dtype())
	}
	return &Set{
		Images:     images,
		DataLength: images.Shape()[0],
	}, nil
}

// Blank Set of n all-zero images
func Blank(n, height, width, channels int) *Set {
	images := tensor.New(tensor.WithShape(n, height, width, channels), tensor.WithBacking(make([]float64, n*height*width*channels)))
	return &Set{
		Images:     images,
		DataLength: n,
	}
}

// SampleShape Returns [H, W, C]
func (s *Set) SampleShape() tensor.Shape {
	return s.Images.Shape()[1:].Clone()
}

// Batcher Splits set into batches of fixed size. Trailing samples which do not fill a whole batch are dropped:
// training graph is compiled for one batch size.
type Batcher struct {
	set       *Set
	batchSize int
	order     []int
	rng       *rand.Rand
}

// NewBatcher Creates batcher. If rng is nil then samples are never shuffled
func NewBatcher(set *Set, batchSize int, rng *rand.Rand) (*Batcher, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if set.DataLength < batchSize {
		return nil, fmt.Errorf("set of %d samples can't fill a batch of %d", set.DataLength, batchSize)
	}
	order := make([]int, set.DataLength)
	for i := range order {
		order[i] = i
	}
	return &Batcher{
		set:       set,
		batchSize: batchSize,
		order:     order,
		rng:       rng,
	}, nil
}

// Len Returns number of whole batches
func (b *Batcher) Len() int {
	return b.set.DataLength / b.batchSize
}

// Shuffle Reorders samples for next epoch
func (b *Batcher) Shuffle() {
	if b.rng == nil {
		return
	}
	b.rng.Shuffle(len(b.order), func(i, j int) {
		b.order[i], b.order[j] = b.order[j], b.order[i]
	})
}

// Batch Returns copy of i-th batch with shape [batchSize, H, W, C]
func (b *Batcher) Batch(i int) (tensor.Tensor, error) {
	if i < 0 || i >= b.Len() {
		return nil, errors.Errorf("batch index %d is out of range [0, %d)", i, b.Len())
	}
	sampleShape := b.set.SampleShape()
	sampleSize := sampleShape.TotalSize()
	src := b.set.Images.Data().([]float64)
	data := make([]float64, b.batchSize*sampleSize)
	for k := 0; k < b.batchSize; k++ {
		idx := b.order[i*b.batchSize+k]
		copy(data[k*sampleSize:(k+1)*sampleSize], src[idx*sampleSize:(idx+1)*sampleSize])
	}
	shape := append(tensor.Shape{b.batchSize}, sampleShape...)
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)), nil
}

// Filter Returns set containing only samples with provided label
func Filter(set *Set, labels []byte, label byte) (*Set, error) {
	if len(labels) != set.DataLength {
		return nil, fmt.Errorf("got %d labels for %d samples", len(labels), set.DataLength)
	}
	sampleShape := set.SampleShape()
	sampleSize := sampleShape.TotalSize()
	src := set.Images.Data().([]float64)
	data := make([]float64, 0)
	n := 0
	for i, l := range labels {
		if l != label {
			continue
		}
		data = append(data, src[i*sampleSize:(i+1)*sampleSize]...)
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("no samples with label %d", label)
	}
	shape := append(tensor.Shape{n}, sampleShape...)
	return NewSet(tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)))
}

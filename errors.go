package dcgan

import (
	"github.com/pkg/errors"
)

var (
	// ErrShapeMismatch is returned when a tensor does not fit the shape declared for it:
	// noise dimensionality, image shape or batch size.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrParameterOverlap is returned when generator and discriminator share a learnable node
	ErrParameterOverlap = errors.New("generator and discriminator share parameters")
	// ErrNilNetwork is returned when a trainer is constructed without one of the networks
	ErrNilNetwork = errors.New("network is nil")
)

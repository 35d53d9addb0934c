package classifier

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
)

// Classifier reports whether an image contains a cat.
type Classifier interface {
	// ContainsCat returns true when a cat is found with confidence at or above
	// confidenceThreshold, expressed in percent.
	ContainsCat(ctx context.Context, image []byte, confidenceThreshold float32) (bool, error)
}

// ErrEmptyImage is returned when the frame has no bytes.
var ErrEmptyImage = errors.New("image is empty")

// Fake answers at random, the way a demo camera without a model would.
type Fake struct {
	// rnd is the answer source.
	rnd *rand.Rand
	// mu serializes access to rnd.
	mu sync.Mutex
}

// NewFake creates a Fake classifier seeded with seed.
func NewFake(seed uint64) *Fake {
	return &Fake{
		rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec // Not used for security.
	}
}

// ContainsCat returns a random answer for any non-empty image.
func (f *Fake) ContainsCat(_ context.Context, image []byte, _ float32) (bool, error) {
	if len(image) == 0 {
		return false, ErrEmptyImage
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.rnd.IntN(2) == 1, nil
}

package gpio

import (
	"errors"
	"sync"
)

// errNoSamples is returned by Fake when nothing was scripted.
var errNoSamples = errors.New("no samples configured")

// Fake is a Reader returning scripted samples.
// Each Values call consumes the next sample; the last one repeats.
type Fake struct {
	// samples are the scripted raw values.
	samples [][]int
	// index is the next sample to return.
	index int
	// ReadErr, if set, is returned by Values.
	ReadErr error
	// closed tracks whether Close was called.
	closed bool
	// mu protects the fields above.
	mu sync.Mutex
}

// NewFake creates a Fake reader with the given samples.
func NewFake(samples ...[]int) *Fake {
	return &Fake{samples: samples}
}

// Values returns the next scripted sample.
func (f *Fake) Values() ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadErr != nil {
		return nil, f.ReadErr
	}

	if len(f.samples) == 0 {
		return nil, errNoSamples
	}

	sample := f.samples[f.index]
	if f.index < len(f.samples)-1 {
		f.index++
	}

	return append([]int(nil), sample...), nil
}

// Close marks the reader closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

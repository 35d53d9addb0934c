//go:build !linux

package gpio

// Chip is not available on non-Linux platforms.
type Chip struct{}

// Open always fails outside Linux.
func Open(string, []int) (*Chip, error) {
	return nil, ErrUnsupported
}

// Values always fails outside Linux.
func (*Chip) Values() ([]int, error) {
	return nil, ErrUnsupported
}

// Close does nothing.
func (*Chip) Close() error {
	return nil
}

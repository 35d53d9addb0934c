//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Chip reads lines from a Linux GPIO character device.
type Chip struct {
	// chip is the opened character device.
	chip *gpiocdev.Chip
	// lines are the requested input lines.
	lines *gpiocdev.Lines
	// values is reused between reads.
	values []int
}

// Open requests offsets on the named chip as inputs with pull-up bias.
func Open(name string, offsets []int) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumerName))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}

	lines, err := chip.RequestLines(offsets, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		_ = chip.Close()

		return nil, fmt.Errorf("request gpio lines %v: %w", offsets, err)
	}

	return &Chip{
		chip:   chip,
		lines:  lines,
		values: make([]int, len(offsets)),
	}, nil
}

// Values returns the current raw values.
func (c *Chip) Values() ([]int, error) {
	if err := c.lines.Values(c.values); err != nil {
		return nil, fmt.Errorf("read gpio lines: %w", err)
	}

	return append([]int(nil), c.values...), nil
}

// Close releases the lines and the chip.
func (c *Chip) Close() error {
	var errs []error

	if err := c.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close gpio lines: %w", err))
	}

	if err := c.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close gpio chip: %w", err))
	}

	return errors.Join(errs...)
}

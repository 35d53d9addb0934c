package gpio

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// consumerName labels requested lines in the kernel.
const consumerName = "catpoint"

// ErrUnsupported is returned when GPIO is not available on the platform.
var ErrUnsupported = errors.New("gpio is not supported on this platform")

// Reader samples raw line values.
type Reader interface {
	// Values returns the raw value (0 or 1) of every requested line, in request order.
	Values() ([]int, error)
	// Close releases the lines.
	Close() error
}

// SensorSink receives sensor activation events and reports the stored sensor states.
type SensorSink interface {
	ChangeSensorActivationStatus(ctx context.Context, key domain.SensorKey, active bool) error
	Sensors(ctx context.Context) ([]domain.Sensor, error)
}

// Line binds one GPIO line to a sensor.
type Line struct {
	// Offset is the line number on the chip.
	Offset int
	// Sensor identifies the sensor driven by the line.
	Sensor domain.SensorKey
	// ActiveLow means a low line is an active sensor.
	ActiveLow bool
}

// Active converts a raw value into the sensor state.
func (l Line) Active(raw int) bool {
	return (raw != 0) != l.ActiveLow
}

// LinesFromConfig converts configured bindings into Lines.
func LinesFromConfig(bindings []config.GPIOLine) ([]Line, error) {
	lines := make([]Line, 0, len(bindings))

	for _, binding := range bindings {
		sensorType, err := domain.ParseSensorType(binding.Type)
		if err != nil {
			return nil, fmt.Errorf("gpio line %d: %w", binding.Offset, err)
		}

		key := domain.SensorKey{
			Name: binding.Sensor,
			Type: sensorType,
		}

		if err = key.Validate(); err != nil {
			return nil, fmt.Errorf("gpio line %d: %w", binding.Offset, err)
		}

		lines = append(lines, Line{
			Offset:    binding.Offset,
			Sensor:    key,
			ActiveLow: binding.ActiveLow,
		})
	}

	return lines, nil
}

// Offsets returns the line offsets in order.
func Offsets(lines []Line) []int {
	offsets := make([]int, 0, len(lines))

	for _, line := range lines {
		offsets = append(offsets, line.Offset)
	}

	return offsets
}

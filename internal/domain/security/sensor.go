package security

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// SensorType is the kind of device a sensor is attached to.
type SensorType int

const (
	// Door is a door contact.
	Door SensorType = iota
	// Window is a window contact.
	Window
	// Motion is a motion detector.
	Motion
)

var (
	// ErrInvalidSensorType is returned when a sensor type name is not recognized.
	ErrInvalidSensorType = errors.New("invalid sensor type")
	// ErrEmptySensorName is returned when a sensor has no name.
	ErrEmptySensorName = errors.New("sensor name is empty")
)

//nolint:gochecknoglobals // Lookup table for enum names.
var sensorTypeNames = map[SensorType]string{
	Door:   "DOOR",
	Window: "WINDOW",
	Motion: "MOTION",
}

// String returns the canonical upper-case name of the type.
func (t SensorType) String() string {
	if name, ok := sensorTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("SensorType(%d)", int(t))
}

// ParseSensorType converts a type name (case-insensitive) into a SensorType.
func ParseSensorType(s string) (SensorType, error) {
	normalized := normalizeName(s)

	for sensorType, name := range sensorTypeNames {
		if name == normalized {
			return sensorType, nil
		}
	}

	return Door, fmt.Errorf("%w: %q", ErrInvalidSensorType, s)
}

// SensorKey is the identity of a sensor: no two sensors share both name and type.
type SensorKey struct {
	// Name is the user-facing sensor name.
	Name string
	// Type is the device kind.
	Type SensorType
}

// String renders the key as "name (TYPE)".
func (k SensorKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Name, k.Type)
}

// Compare orders keys by name, then by type.
func (k SensorKey) Compare(other SensorKey) int {
	if c := cmp.Compare(k.Name, other.Name); c != 0 {
		return c
	}

	return cmp.Compare(k.Type.String(), other.Type.String())
}

// Validate checks that the key names a known sensor type and has a name.
func (k SensorKey) Validate() error {
	if k.Name == "" {
		return ErrEmptySensorName
	}

	if _, ok := sensorTypeNames[k.Type]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidSensorType, int(k.Type))
	}

	return nil
}

// Sensor is a binary device reporting active or inactive.
type Sensor struct {
	// Name is the user-facing sensor name.
	Name string
	// Type is the device kind.
	Type SensorType
	// Active reports whether the sensor is currently tripped.
	Active bool
}

// NewSensor creates an inactive sensor.
func NewSensor(name string, sensorType SensorType) Sensor {
	return Sensor{
		Name: name,
		Type: sensorType,
	}
}

// Key returns the identity of the sensor.
func (s Sensor) Key() SensorKey {
	return SensorKey{
		Name: s.Name,
		Type: s.Type,
	}
}

// Validate checks the sensor identity.
func (s Sensor) Validate() error {
	return s.Key().Validate()
}

// SortSensors orders sensors for display: by name, then by type.
func SortSensors(sensors []Sensor) {
	slices.SortFunc(sensors, func(a, b Sensor) int {
		return a.Key().Compare(b.Key())
	})
}

// AnyActive reports whether at least one sensor is active.
func AnyActive(sensors []Sensor) bool {
	return slices.ContainsFunc(sensors, func(s Sensor) bool {
		return s.Active
	})
}

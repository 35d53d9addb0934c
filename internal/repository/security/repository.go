package security

import (
	"context"
	"errors"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Repository defines persistence operations for the security system state.
type Repository interface {
	AlarmStatus(ctx context.Context) (domain.AlarmStatus, error)
	SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error
	ArmingStatus(ctx context.Context) (domain.ArmingStatus, error)
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
	// CatDetected returns the latched result of the last processed image.
	CatDetected(ctx context.Context) (bool, error)
	SetCatDetected(ctx context.Context, detected bool) error
	// Sensors returns every known sensor ordered by name, then type.
	Sensors(ctx context.Context) ([]domain.Sensor, error)
	Sensor(ctx context.Context, key domain.SensorKey) (domain.Sensor, error)
	AddSensor(ctx context.Context, sensor domain.Sensor) error
	RemoveSensor(ctx context.Context, key domain.SensorKey) error
	UpdateSensor(ctx context.Context, sensor domain.Sensor) error
}

// Locker is implemented by repositories shared between processes.
// Lock blocks until the caller holds the system-wide lock or ctx is done.
// The returned function releases it.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

var (
	// ErrSensorNotFound is returned when no sensor with the given key is stored.
	ErrSensorNotFound = errors.New("sensor not found")
	// ErrSensorExists is returned when adding a sensor whose key is already taken.
	ErrSensorExists = errors.New("sensor already exists")
)

package security

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// state is the plain state shared by the in-process backends.
type state struct {
	// alarmStatus is the current escalation level.
	alarmStatus domain.AlarmStatus
	// armingStatus is the current arming mode.
	armingStatus domain.ArmingStatus
	// catDetected is the result of the last processed image.
	catDetected bool
	// sensors holds known sensors keyed by identity.
	sensors map[domain.SensorKey]domain.Sensor
}

// newState returns the initial NO_ALARM/DISARMED state without sensors.
func newState() *state {
	return &state{
		alarmStatus:  domain.NoAlarm,
		armingStatus: domain.Disarmed,
		sensors:      make(map[domain.SensorKey]domain.Sensor),
	}
}

// clone returns an independent copy of the state.
func (s *state) clone() *state {
	return &state{
		alarmStatus:  s.alarmStatus,
		armingStatus: s.armingStatus,
		catDetected:  s.catDetected,
		sensors:      maps.Clone(s.sensors),
	}
}

// sortedSensors returns the sensors in display order.
func (s *state) sortedSensors() []domain.Sensor {
	sensors := slices.Collect(maps.Values(s.sensors))
	domain.SortSensors(sensors)

	return sensors
}

// sensor looks up a sensor by key.
func (s *state) sensor(key domain.SensorKey) (domain.Sensor, error) {
	sensor, ok := s.sensors[key]
	if !ok {
		return domain.Sensor{}, fmt.Errorf("%w: %s", ErrSensorNotFound, key)
	}

	return sensor, nil
}

// addSensor stores a new sensor.
func (s *state) addSensor(sensor domain.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}

	if _, ok := s.sensors[sensor.Key()]; ok {
		return fmt.Errorf("%w: %s", ErrSensorExists, sensor.Key())
	}

	s.sensors[sensor.Key()] = sensor

	return nil
}

// removeSensor deletes a sensor.
func (s *state) removeSensor(key domain.SensorKey) error {
	if _, ok := s.sensors[key]; !ok {
		return fmt.Errorf("%w: %s", ErrSensorNotFound, key)
	}

	delete(s.sensors, key)

	return nil
}

// updateSensor replaces a stored sensor.
func (s *state) updateSensor(sensor domain.Sensor) error {
	if _, ok := s.sensors[sensor.Key()]; !ok {
		return fmt.Errorf("%w: %s", ErrSensorNotFound, sensor.Key())
	}

	s.sensors[sensor.Key()] = sensor

	return nil
}

// MemoryRepository keeps the state in process memory.
type MemoryRepository struct {
	// state is the current state.
	state *state
	// mu protects concurrent access to the state.
	mu sync.RWMutex
}

// NewMemoryRepository creates an empty repository in the initial state.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state: newState(),
	}
}

// AlarmStatus returns the stored alarm status.
func (r *MemoryRepository) AlarmStatus(context.Context) (domain.AlarmStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.alarmStatus, nil
}

// SetAlarmStatus stores the alarm status.
func (r *MemoryRepository) SetAlarmStatus(_ context.Context, status domain.AlarmStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.alarmStatus = status

	return nil
}

// ArmingStatus returns the stored arming status.
func (r *MemoryRepository) ArmingStatus(context.Context) (domain.ArmingStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.armingStatus, nil
}

// SetArmingStatus stores the arming status.
func (r *MemoryRepository) SetArmingStatus(_ context.Context, status domain.ArmingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.armingStatus = status

	return nil
}

// CatDetected returns the latched cat flag.
func (r *MemoryRepository) CatDetected(context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.catDetected, nil
}

// SetCatDetected stores the cat flag.
func (r *MemoryRepository) SetCatDetected(_ context.Context, detected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.catDetected = detected

	return nil
}

// Sensors returns all sensors in display order.
func (r *MemoryRepository) Sensors(context.Context) ([]domain.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.sortedSensors(), nil
}

// Sensor returns a single sensor.
func (r *MemoryRepository) Sensor(_ context.Context, key domain.SensorKey) (domain.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.sensor(key)
}

// AddSensor registers a new sensor.
func (r *MemoryRepository) AddSensor(_ context.Context, sensor domain.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.addSensor(sensor)
}

// RemoveSensor unregisters a sensor.
func (r *MemoryRepository) RemoveSensor(_ context.Context, key domain.SensorKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.removeSensor(key)
}

// UpdateSensor replaces a stored sensor.
func (r *MemoryRepository) UpdateSensor(_ context.Context, sensor domain.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.updateSensor(sensor)
}

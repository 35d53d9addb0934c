package security

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	pb "github.com/oshokin/catpoint/internal/pb/v1"
)

// FileRepository persists the state to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) using the same
// Struct layout as the gRPC snapshot messages.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// state is the last state successfully written to or read from disk.
	state *state
	// mu protects concurrent access to the state and the file.
	mu sync.RWMutex
}

// NewFileRepository creates a repository backed by the JSON file at path.
// A missing file means the initial state; it is created on the first write.
func NewFileRepository(path string) (*FileRepository, error) {
	r := &FileRepository{
		path:  filepath.Clean(path),
		state: newState(),
	}

	loaded, err := r.load()
	switch {
	case err == nil:
		r.state = loaded
	case errors.Is(err, os.ErrNotExist):
		// Keep initial state.
	default:
		return nil, err
	}

	return r, nil
}

// Path returns the location of the state file.
func (r *FileRepository) Path() string {
	return r.path
}

// AlarmStatus returns the stored alarm status.
func (r *FileRepository) AlarmStatus(context.Context) (domain.AlarmStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.alarmStatus, nil
}

// SetAlarmStatus stores the alarm status.
func (r *FileRepository) SetAlarmStatus(_ context.Context, status domain.AlarmStatus) error {
	return r.mutate(func(s *state) error {
		s.alarmStatus = status
		return nil
	})
}

// ArmingStatus returns the stored arming status.
func (r *FileRepository) ArmingStatus(context.Context) (domain.ArmingStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.armingStatus, nil
}

// SetArmingStatus stores the arming status.
func (r *FileRepository) SetArmingStatus(_ context.Context, status domain.ArmingStatus) error {
	return r.mutate(func(s *state) error {
		s.armingStatus = status
		return nil
	})
}

// CatDetected returns the latched cat flag.
func (r *FileRepository) CatDetected(context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.catDetected, nil
}

// SetCatDetected stores the cat flag.
func (r *FileRepository) SetCatDetected(_ context.Context, detected bool) error {
	return r.mutate(func(s *state) error {
		s.catDetected = detected
		return nil
	})
}

// Sensors returns all sensors in display order.
func (r *FileRepository) Sensors(context.Context) ([]domain.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.sortedSensors(), nil
}

// Sensor returns a single sensor.
func (r *FileRepository) Sensor(_ context.Context, key domain.SensorKey) (domain.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.sensor(key)
}

// AddSensor registers a new sensor.
func (r *FileRepository) AddSensor(_ context.Context, sensor domain.Sensor) error {
	return r.mutate(func(s *state) error {
		return s.addSensor(sensor)
	})
}

// RemoveSensor unregisters a sensor.
func (r *FileRepository) RemoveSensor(_ context.Context, key domain.SensorKey) error {
	return r.mutate(func(s *state) error {
		return s.removeSensor(key)
	})
}

// UpdateSensor replaces a stored sensor.
func (r *FileRepository) UpdateSensor(_ context.Context, sensor domain.Sensor) error {
	return r.mutate(func(s *state) error {
		return s.updateSensor(sensor)
	})
}

// mutate applies fn to a copy of the state, writes it to disk and only then
// makes it current, so a failed write leaves the previous state in place.
func (r *FileRepository) mutate(fn func(*state) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state.clone()
	if err := fn(next); err != nil {
		return err
	}

	if err := r.save(next); err != nil {
		return err
	}

	r.state = next

	return nil
}

// load reads the state from disk.
func (r *FileRepository) load() (*state, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var message structpb.Struct
	if err = protojson.Unmarshal(contents, &message); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	snapshot, err := pb.StructToSnapshot(&message)
	if err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	loaded := newState()
	loaded.alarmStatus = snapshot.AlarmStatus
	loaded.armingStatus = snapshot.ArmingStatus
	loaded.catDetected = snapshot.CatDetected

	for _, sensor := range snapshot.Sensors {
		loaded.sensors[sensor.Key()] = sensor
	}

	return loaded, nil
}

// save writes the state to disk using JSON representation.
func (r *FileRepository) save(s *state) error {
	message, err := pb.SnapshotToStruct(&domain.Snapshot{
		AlarmStatus:  s.alarmStatus,
		ArmingStatus: s.armingStatus,
		CatDetected:  s.catDetected,
		Sensors:      s.sortedSensors(),
	})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

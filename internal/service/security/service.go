package security

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oshokin/catpoint/internal/classifier"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
	repo "github.com/oshokin/catpoint/internal/repository/security"
)

// DefaultConfidenceThreshold is the minimum cat confidence, in percent, used by ProcessImage.
const DefaultConfidenceThreshold float32 = 50

var (
	// ErrUnknownSensor is returned when an activation event names a sensor the repository does not hold.
	ErrUnknownSensor = errors.New("unknown sensor")
	// errRepositoryRequired is returned by New without a repository.
	errRepositoryRequired = errors.New("repository is required")
	// errClassifierRequired is returned by New without a classifier.
	errClassifierRequired = errors.New("classifier is required")
)

// Option customizes a Service.
type Option func(*Service)

// WithListeners subscribes listeners before the service is used.
func WithListeners(listeners ...notify.Listener) Option {
	return func(s *Service) {
		for _, listener := range listeners {
			s.listeners.Subscribe(listener)
		}
	}
}

// WithConfidenceThreshold overrides the cat confidence threshold passed to the classifier.
func WithConfidenceThreshold(threshold float32) Option {
	return func(s *Service) {
		s.threshold = threshold
	}
}

// Service is the alarm decision engine.
type Service struct {
	// repo stores alarm status, arming status and sensors.
	repo repo.Repository
	// classifier answers whether a frame shows a cat.
	classifier classifier.Classifier
	// listeners receive committed changes.
	listeners notify.Registry
	// threshold is the cat confidence threshold in percent.
	threshold float32
	// mu serializes every read-decide-write sequence in this process.
	// Repositories implementing repo.Locker extend it across processes.
	mu sync.Mutex
}

// New creates a decision engine over an explicitly constructed repository and classifier.
func New(repository repo.Repository, imageClassifier classifier.Classifier, opts ...Option) (*Service, error) {
	if repository == nil {
		return nil, errRepositoryRequired
	}

	if imageClassifier == nil {
		return nil, errClassifierRequired
	}

	s := &Service{
		repo:       repository,
		classifier: imageClassifier,
		threshold:  DefaultConfidenceThreshold,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Subscribe registers a listener for future changes.
func (s *Service) Subscribe(listener notify.Listener) {
	s.listeners.Subscribe(listener)
}

// Unsubscribe removes a listener.
func (s *Service) Unsubscribe(listener notify.Listener) {
	s.listeners.Unsubscribe(listener)
}

// ChangeSensorActivationStatus sets a sensor's active flag and derives the alarm status
// from the state before the change:
//
//   - repeating the current state never changes the alarm status;
//   - nothing is derived while disarmed or in ALARM;
//   - activation escalates NO_ALARM to PENDING_ALARM and PENDING_ALARM to ALARM;
//   - deactivation clears PENDING_ALARM once no sensor remains active.
//
// The sensor is always written and sensor listeners notified.
func (s *Service) ChangeSensorActivationStatus(ctx context.Context, key domain.SensorKey, active bool) error {
	ctx = logger.WithKV(ctx, "sensor", key.String())

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}

	defer unlock()

	sensor, err := s.repo.Sensor(ctx, key)
	if err != nil {
		if errors.Is(err, repo.ErrSensorNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownSensor, key)
		}

		return fmt.Errorf("load sensor: %w", err)
	}

	alarmStatus, err := s.repo.AlarmStatus(ctx)
	if err != nil {
		return fmt.Errorf("load alarm status: %w", err)
	}

	armingStatus, err := s.repo.ArmingStatus(ctx)
	if err != nil {
		return fmt.Errorf("load arming status: %w", err)
	}

	wasActive := sensor.Active
	sensor.Active = active

	if err = s.repo.UpdateSensor(ctx, sensor); err != nil {
		return fmt.Errorf("update sensor: %w", err)
	}

	sensors, err := s.repo.Sensors(ctx)
	if err != nil {
		return fmt.Errorf("load sensors: %w", err)
	}

	next := alarmStatus

	if wasActive != active && armingStatus.IsArmed() {
		next = nextAlarmStatus(alarmStatus, active, domain.AnyActive(sensors))
	}

	logger.DebugKV(ctx, "Sensor activation changed",
		"active", active,
		"was_active", wasActive,
		"arming_status", armingStatus.String(),
		"alarm_status", alarmStatus.String())

	s.listeners.NotifySensors(ctx, sensors)

	return s.setAlarmStatus(ctx, alarmStatus, next)
}

// SetArmingStatus stores a new arming status.
// Disarming clears the alarm. Arming from DISARMED first resets every sensor to
// inactive. Arming ARMED_HOME while a cat is latched raises the alarm.
func (s *Service) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "arming_status", status.String())

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}

	defer unlock()

	current, err := s.repo.ArmingStatus(ctx)
	if err != nil {
		return fmt.Errorf("load arming status: %w", err)
	}

	alarmStatus, err := s.repo.AlarmStatus(ctx)
	if err != nil {
		return fmt.Errorf("load alarm status: %w", err)
	}

	if status.IsArmed() && !current.IsArmed() {
		if err = s.resetSensors(ctx); err != nil {
			return err
		}
	}

	if status != current {
		if err = s.repo.SetArmingStatus(ctx, status); err != nil {
			return fmt.Errorf("store arming status: %w", err)
		}

		s.listeners.NotifyArmingStatus(ctx, status)
	}

	catDetected, err := s.repo.CatDetected(ctx)
	if err != nil {
		return fmt.Errorf("load cat detected: %w", err)
	}

	next := alarmStatus

	switch {
	case status == domain.Disarmed:
		next = domain.NoAlarm
	case status == domain.ArmedHome && catDetected:
		next = domain.Alarm
	}

	return s.setAlarmStatus(ctx, alarmStatus, next)
}

// ProcessImage classifies a camera frame and applies the result:
// a cat while ARMED_HOME raises the alarm regardless of sensors,
// no cat with every sensor inactive clears it.
//
// The classifier runs before the engine lock is taken.
func (s *Service) ProcessImage(ctx context.Context, image []byte) error {
	detected, err := s.classifier.ContainsCat(ctx, image, s.threshold)
	if err != nil {
		return fmt.Errorf("classify image: %w", err)
	}

	ctx = logger.WithKV(ctx, "cat_detected", detected)

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}

	defer unlock()

	if err = s.repo.SetCatDetected(ctx, detected); err != nil {
		return fmt.Errorf("store cat detected: %w", err)
	}

	s.listeners.NotifyCatDetected(ctx, detected)

	alarmStatus, err := s.repo.AlarmStatus(ctx)
	if err != nil {
		return fmt.Errorf("load alarm status: %w", err)
	}

	next := alarmStatus

	if detected {
		var armingStatus domain.ArmingStatus

		armingStatus, err = s.repo.ArmingStatus(ctx)
		if err != nil {
			return fmt.Errorf("load arming status: %w", err)
		}

		if armingStatus == domain.ArmedHome {
			next = domain.Alarm
		}
	} else {
		var sensors []domain.Sensor

		sensors, err = s.repo.Sensors(ctx)
		if err != nil {
			return fmt.Errorf("load sensors: %w", err)
		}

		if !domain.AnyActive(sensors) {
			next = domain.NoAlarm
		}
	}

	return s.setAlarmStatus(ctx, alarmStatus, next)
}

// AddSensor registers a new sensor.
func (s *Service) AddSensor(ctx context.Context, sensor domain.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}

	defer unlock()

	if err = s.repo.AddSensor(ctx, sensor); err != nil {
		return fmt.Errorf("add sensor: %w", err)
	}

	logger.InfoKV(ctx, "Sensor added", "sensor", sensor.Key().String())

	return s.notifySensors(ctx)
}

// RemoveSensor unregisters a sensor. The alarm status is left untouched.
func (s *Service) RemoveSensor(ctx context.Context, key domain.SensorKey) error {
	if err := key.Validate(); err != nil {
		return err
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}

	defer unlock()

	if err = s.repo.RemoveSensor(ctx, key); err != nil {
		return fmt.Errorf("remove sensor: %w", err)
	}

	logger.InfoKV(ctx, "Sensor removed", "sensor", key.String())

	return s.notifySensors(ctx)
}

// Snapshot returns a consistent view of the whole system.
func (s *Service) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alarmStatus, err := s.repo.AlarmStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("load alarm status: %w", err)
	}

	armingStatus, err := s.repo.ArmingStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("load arming status: %w", err)
	}

	catDetected, err := s.repo.CatDetected(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cat detected: %w", err)
	}

	sensors, err := s.repo.Sensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sensors: %w", err)
	}

	return &domain.Snapshot{
		AlarmStatus:  alarmStatus,
		ArmingStatus: armingStatus,
		CatDetected:  catDetected,
		Sensors:      sensors,
	}, nil
}

// AlarmStatus returns the stored alarm status.
func (s *Service) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.AlarmStatus(ctx)
}

// ArmingStatus returns the stored arming status.
func (s *Service) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.ArmingStatus(ctx)
}

// Sensors returns every sensor ordered by name, then type.
func (s *Service) Sensors(ctx context.Context) ([]domain.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.Sensors(ctx)
}

// CatDetected returns the latched result of the last processed image.
func (s *Service) CatDetected(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.CatDetected(ctx)
}

// lock enters the critical section: the process mutex, then the repository
// lock when the backend is shared between processes.
func (s *Service) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()

	locker, ok := s.repo.(repo.Locker)
	if !ok {
		return s.mu.Unlock, nil
	}

	release, err := locker.Lock(ctx)
	if err != nil {
		s.mu.Unlock()

		return nil, fmt.Errorf("lock repository: %w", err)
	}

	return func() {
		release()
		s.mu.Unlock()
	}, nil
}

// nextAlarmStatus applies the sensor rules to a real activation change while armed.
// anyActive reports whether any sensor is active after the change.
func nextAlarmStatus(current domain.AlarmStatus, active, anyActive bool) domain.AlarmStatus {
	if current == domain.Alarm {
		return current
	}

	if active {
		if current == domain.NoAlarm {
			return domain.PendingAlarm
		}

		return domain.Alarm
	}

	if current == domain.PendingAlarm && !anyActive {
		return domain.NoAlarm
	}

	return current
}

// setAlarmStatus stores and broadcasts next if it differs from current.
// Must be called with s.mu held.
func (s *Service) setAlarmStatus(ctx context.Context, current, next domain.AlarmStatus) error {
	if current == next {
		return nil
	}

	if err := s.repo.SetAlarmStatus(ctx, next); err != nil {
		logger.ErrorKV(ctx, "Failed to store alarm status", "alarm_status", next.String(), "error", err)

		return fmt.Errorf("store alarm status: %w", err)
	}

	logger.InfoKV(ctx, "Alarm status decided", "from", current.String(), "to", next.String())

	s.listeners.NotifyAlarmStatus(ctx, next)

	return nil
}

// resetSensors deactivates every active sensor and notifies sensor listeners.
// Must be called with s.mu held.
func (s *Service) resetSensors(ctx context.Context) error {
	sensors, err := s.repo.Sensors(ctx)
	if err != nil {
		return fmt.Errorf("load sensors: %w", err)
	}

	if !domain.AnyActive(sensors) {
		return nil
	}

	for i := range sensors {
		if !sensors[i].Active {
			continue
		}

		sensors[i].Active = false

		if err = s.repo.UpdateSensor(ctx, sensors[i]); err != nil {
			return fmt.Errorf("reset sensor %s: %w", sensors[i].Key(), err)
		}
	}

	logger.Debug(ctx, "Sensors reset before arming")

	s.listeners.NotifySensors(ctx, sensors)

	return nil
}

// notifySensors broadcasts the current sensor list.
// Must be called with s.mu held.
func (s *Service) notifySensors(ctx context.Context) error {
	sensors, err := s.repo.Sensors(ctx)
	if err != nil {
		return fmt.Errorf("load sensors: %w", err)
	}

	s.listeners.NotifySensors(ctx, sensors)

	return nil
}

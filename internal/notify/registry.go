package notify

import (
	"context"
	"slices"
	"sync"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Listener observes committed status changes.
type Listener interface {
	// AlarmStatusChanged is called after a new alarm status was stored.
	AlarmStatusChanged(ctx context.Context, status domain.AlarmStatus)
	// ArmingStatusChanged is called after a new arming status was stored.
	ArmingStatusChanged(ctx context.Context, status domain.ArmingStatus)
	// CatDetected is called after every processed image.
	CatDetected(ctx context.Context, detected bool)
	// SensorsChanged is called after the sensor set or any sensor state changed.
	SensorsChanged(ctx context.Context, sensors []domain.Sensor)
}

// Funcs adapts plain functions to Listener. Nil functions are skipped.
type Funcs struct {
	// OnAlarmStatus handles alarm status changes.
	OnAlarmStatus func(ctx context.Context, status domain.AlarmStatus)
	// OnArmingStatus handles arming status changes.
	OnArmingStatus func(ctx context.Context, status domain.ArmingStatus)
	// OnCatDetected handles image classification results.
	OnCatDetected func(ctx context.Context, detected bool)
	// OnSensors handles sensor changes.
	OnSensors func(ctx context.Context, sensors []domain.Sensor)
}

// AlarmStatusChanged calls OnAlarmStatus if set.
func (f *Funcs) AlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) {
	if f.OnAlarmStatus != nil {
		f.OnAlarmStatus(ctx, status)
	}
}

// ArmingStatusChanged calls OnArmingStatus if set.
func (f *Funcs) ArmingStatusChanged(ctx context.Context, status domain.ArmingStatus) {
	if f.OnArmingStatus != nil {
		f.OnArmingStatus(ctx, status)
	}
}

// CatDetected calls OnCatDetected if set.
func (f *Funcs) CatDetected(ctx context.Context, detected bool) {
	if f.OnCatDetected != nil {
		f.OnCatDetected(ctx, detected)
	}
}

// SensorsChanged calls OnSensors if set.
func (f *Funcs) SensorsChanged(ctx context.Context, sensors []domain.Sensor) {
	if f.OnSensors != nil {
		f.OnSensors(ctx, sensors)
	}
}

// Registry is a subscriber list with broadcast helpers. The zero value is ready to use.
type Registry struct {
	// listeners are the current subscribers in subscription order.
	listeners []Listener
	// mu protects listeners.
	mu sync.RWMutex
}

// Subscribe adds a listener. Nil listeners are ignored.
func (r *Registry) Subscribe(listener Listener) {
	if listener == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, listener)
}

// Unsubscribe removes the first occurrence of a listener.
// Listeners must be comparable, which pointer receivers always are.
func (r *Registry) Unsubscribe(listener Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index := slices.Index(r.listeners, listener); index >= 0 {
		r.listeners = slices.Delete(r.listeners, index, index+1)
	}
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.listeners)
}

// NotifyAlarmStatus broadcasts an alarm status change.
func (r *Registry) NotifyAlarmStatus(ctx context.Context, status domain.AlarmStatus) {
	r.notifyAll(func(listener Listener) {
		listener.AlarmStatusChanged(ctx, status)
	})
}

// NotifyArmingStatus broadcasts an arming status change.
func (r *Registry) NotifyArmingStatus(ctx context.Context, status domain.ArmingStatus) {
	r.notifyAll(func(listener Listener) {
		listener.ArmingStatusChanged(ctx, status)
	})
}

// NotifyCatDetected broadcasts an image classification result.
func (r *Registry) NotifyCatDetected(ctx context.Context, detected bool) {
	r.notifyAll(func(listener Listener) {
		listener.CatDetected(ctx, detected)
	})
}

// NotifySensors broadcasts the sensor list. Each listener gets its own copy.
func (r *Registry) NotifySensors(ctx context.Context, sensors []domain.Sensor) {
	r.notifyAll(func(listener Listener) {
		listener.SensorsChanged(ctx, slices.Clone(sensors))
	})
}

// notifyAll delivers to a copy of the subscriber list taken under the lock,
// so listeners may subscribe or unsubscribe while being notified.
func (r *Registry) notifyAll(deliver func(Listener)) {
	r.mu.RLock()
	listeners := slices.Clone(r.listeners)
	r.mu.RUnlock()

	for _, listener := range listeners {
		deliver(listener)
	}
}

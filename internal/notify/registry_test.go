package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// recordingListener remembers every event it receives.
type recordingListener struct {
	// alarms are received alarm statuses.
	alarms []domain.AlarmStatus
	// armings are received arming statuses.
	armings []domain.ArmingStatus
	// cats are received classification results.
	cats []bool
	// sensors are received sensor lists.
	sensors [][]domain.Sensor
}

func (l *recordingListener) AlarmStatusChanged(_ context.Context, status domain.AlarmStatus) {
	l.alarms = append(l.alarms, status)
}

func (l *recordingListener) ArmingStatusChanged(_ context.Context, status domain.ArmingStatus) {
	l.armings = append(l.armings, status)
}

func (l *recordingListener) CatDetected(_ context.Context, detected bool) {
	l.cats = append(l.cats, detected)
}

func (l *recordingListener) SensorsChanged(_ context.Context, sensors []domain.Sensor) {
	l.sensors = append(l.sensors, sensors)
}

// TestRegistry_BroadcastsToAll verifies every subscriber receives every event.
func TestRegistry_BroadcastsToAll(t *testing.T) {
	t.Parallel()

	var (
		ctx      = context.Background()
		registry Registry
		first    = new(recordingListener)
		second   = new(recordingListener)
	)

	registry.Subscribe(first)
	registry.Subscribe(second)
	registry.Subscribe(nil)
	require.Equal(t, 2, registry.Len())

	registry.NotifyAlarmStatus(ctx, domain.PendingAlarm)
	registry.NotifyArmingStatus(ctx, domain.ArmedAway)
	registry.NotifyCatDetected(ctx, true)
	registry.NotifySensors(ctx, []domain.Sensor{domain.NewSensor("front", domain.Door)})

	for _, listener := range []*recordingListener{first, second} {
		require.Equal(t, []domain.AlarmStatus{domain.PendingAlarm}, listener.alarms)
		require.Equal(t, []domain.ArmingStatus{domain.ArmedAway}, listener.armings)
		require.Equal(t, []bool{true}, listener.cats)
		require.Len(t, listener.sensors, 1)
	}

	// Listeners receive independent copies.
	first.sensors[0][0].Active = true
	require.False(t, second.sensors[0][0].Active)

	registry.Unsubscribe(first)
	registry.NotifyAlarmStatus(ctx, domain.Alarm)

	require.Len(t, first.alarms, 1)
	require.Equal(t, []domain.AlarmStatus{domain.PendingAlarm, domain.Alarm}, second.alarms)
}

// TestRegistry_UnsubscribeDuringNotify ensures a listener may unsubscribe itself while notified.
func TestRegistry_UnsubscribeDuringNotify(t *testing.T) {
	t.Parallel()

	var (
		registry Registry
		calls    int
		self     *Funcs
	)

	self = &Funcs{
		OnAlarmStatus: func(context.Context, domain.AlarmStatus) {
			calls++

			registry.Unsubscribe(self)
		},
	}

	registry.Subscribe(self)
	registry.NotifyAlarmStatus(context.Background(), domain.Alarm)
	registry.NotifyAlarmStatus(context.Background(), domain.NoAlarm)

	require.Equal(t, 1, calls)
	require.Zero(t, registry.Len())
}

// TestFuncs_NilCallbacks verifies missing callbacks are skipped.
func TestFuncs_NilCallbacks(t *testing.T) {
	t.Parallel()

	f := new(Funcs)

	require.NotPanics(t, func() {
		f.AlarmStatusChanged(context.Background(), domain.Alarm)
		f.ArmingStatusChanged(context.Background(), domain.ArmedHome)
		f.CatDetected(context.Background(), true)
		f.SensorsChanged(context.Background(), nil)
	})
}

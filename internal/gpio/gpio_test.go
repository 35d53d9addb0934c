package gpio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
)

var errTestRead = errors.New("test read error")

// sensorEvent is one call received by recordingSink.
type sensorEvent struct {
	key    domain.SensorKey
	active bool
}

// recordingSink remembers activation events.
type recordingSink struct {
	// events are the received calls.
	events []sensorEvent
	// sensors are the stored states returned by Sensors.
	sensors []domain.Sensor
	// err is returned from every activation call.
	err error
	// sensorsErr is returned from Sensors.
	sensorsErr error
	// mu protects events.
	mu sync.Mutex
}

func (s *recordingSink) ChangeSensorActivationStatus(_ context.Context, key domain.SensorKey, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, sensorEvent{key: key, active: active})

	return s.err
}

func (s *recordingSink) Sensors(context.Context) ([]domain.Sensor, error) {
	return s.sensors, s.sensorsErr
}

func (s *recordingSink) snapshot() []sensorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]sensorEvent(nil), s.events...)
}

var (
	frontKey = domain.SensorKey{Name: "front", Type: domain.Door}
	hallKey  = domain.SensorKey{Name: "hall", Type: domain.Motion}
	lines    = []Line{
		{Offset: 17, Sensor: frontKey},
		{Offset: 27, Sensor: hallKey, ActiveLow: true},
	}
)

// TestLinesFromConfig converts and validates configured bindings.
func TestLinesFromConfig(t *testing.T) {
	t.Parallel()

	got, err := LinesFromConfig([]config.GPIOLine{
		{Offset: 17, Sensor: "front", Type: "door"},
		{Offset: 27, Sensor: "hall", Type: "MOTION", ActiveLow: true},
	})
	require.NoError(t, err)
	require.Equal(t, lines, got)
	require.Equal(t, []int{17, 27}, Offsets(got))

	_, err = LinesFromConfig([]config.GPIOLine{{Offset: 1, Sensor: "x", Type: "lamp"}})
	require.ErrorIs(t, err, domain.ErrInvalidSensorType)

	_, err = LinesFromConfig([]config.GPIOLine{{Offset: 1, Type: "DOOR"}})
	require.ErrorIs(t, err, domain.ErrEmptySensorName)
}

// TestLine_Active applies the active-low inversion.
func TestLine_Active(t *testing.T) {
	t.Parallel()

	require.True(t, Line{}.Active(1))
	require.False(t, Line{}.Active(0))
	require.True(t, Line{ActiveLow: true}.Active(0))
	require.False(t, Line{ActiveLow: true}.Active(1))
}

// TestWatcher_Poll_EmitsEdgesOnly emits nothing for a baseline matching the stored states.
func TestWatcher_Poll_EmitsEdgesOnly(t *testing.T) {
	t.Parallel()

	var (
		ctx  = context.Background()
		sink = &recordingSink{sensors: []domain.Sensor{
			{Name: "front", Type: domain.Door, Active: true},
			{Name: "hall", Type: domain.Motion},
		}}
		reader = NewFake(
			[]int{1, 1}, // Baseline: front active, hall inactive.
			[]int{1, 1},
			[]int{0, 0}, // Front released, hall tripped.
			[]int{0, 1}, // Hall released.
		)
		watcher = NewWatcher(reader, lines, sink, time.Millisecond)
	)

	for range 4 {
		require.NoError(t, watcher.Poll(ctx))
	}

	require.Equal(t, []sensorEvent{
		{key: frontKey, active: false},
		{key: hallKey, active: true},
		{key: hallKey, active: false},
	}, sink.snapshot())
}

// TestWatcher_Poll_BaselineReconciles forwards contacts that changed while nothing was watching.
func TestWatcher_Poll_BaselineReconciles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	sink := &recordingSink{sensorsErr: errTestRead}
	watcher := NewWatcher(NewFake([]int{1, 1}, []int{1, 1}, []int{1, 0}), lines, sink, time.Millisecond)

	// The baseline is retried while stored states are unavailable.
	require.ErrorIs(t, watcher.Poll(ctx), errTestRead)
	require.Empty(t, sink.snapshot())

	// Stored: front inactive, hall active. Sampled: front active, hall inactive.
	sink.sensorsErr = nil
	sink.sensors = []domain.Sensor{{Name: "hall", Type: domain.Motion, Active: true}}

	require.NoError(t, watcher.Poll(ctx))
	require.Equal(t, []sensorEvent{
		{key: frontKey, active: true},
		{key: hallKey, active: false},
	}, sink.snapshot())

	// The next sample trips hall again and is compared with the previous one.
	require.NoError(t, watcher.Poll(ctx))
	require.Equal(t, sensorEvent{key: hallKey, active: true}, sink.snapshot()[2])
	require.Len(t, sink.snapshot(), 3)
}

// TestWatcher_Poll_Errors reports reader problems and tolerates sink errors.
func TestWatcher_Poll_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	reader := NewFake()
	require.ErrorIs(t, NewWatcher(reader, lines, new(recordingSink), time.Millisecond).Poll(ctx), errNoSamples)

	reader = NewFake([]int{1})
	require.ErrorIs(t, NewWatcher(reader, lines, new(recordingSink), time.Millisecond).Poll(ctx), errSampleSize)

	reader = NewFake([]int{0, 1})
	reader.ReadErr = errTestRead
	require.ErrorIs(t, NewWatcher(reader, lines, new(recordingSink), time.Millisecond).Poll(ctx), errTestRead)

	sink := &recordingSink{err: errTestRead}
	watcher := NewWatcher(NewFake([]int{0, 1}, []int{1, 0}), lines, sink, time.Millisecond)

	require.NoError(t, watcher.Poll(ctx))
	require.NoError(t, watcher.Poll(ctx))
	require.Len(t, sink.snapshot(), 2)
}

// TestWatcher_Run stops when the context is canceled.
func TestWatcher_Run(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	var (
		sink    = new(recordingSink)
		watcher = NewWatcher(NewFake([]int{0, 1}, []int{1, 1}), lines, sink, time.Millisecond)
		done    = make(chan error, 1)
	)

	go func() {
		done <- watcher.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 5*time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "watcher did not stop")
	}

	require.Equal(t, []sensorEvent{{key: frontKey, active: true}}, sink.snapshot())
}

// TestFake_Close tracks closing.
func TestFake_Close(t *testing.T) {
	t.Parallel()

	reader := NewFake([]int{0})
	require.NoError(t, reader.Close())
	require.True(t, reader.Closed())
}

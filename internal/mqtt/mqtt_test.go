package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/notify"
)

var errTestBroker = errors.New("test broker error")

var _ notify.Listener = (*Publisher)(nil)

// sensorEvent is one call received by recordingSink.
type sensorEvent struct {
	key    domain.SensorKey
	active bool
}

// recordingSink remembers activation events.
type recordingSink struct {
	// events are the received calls.
	events []sensorEvent
	// err is returned from every call.
	err error
	// mu protects events.
	mu sync.Mutex
}

func (s *recordingSink) ChangeSensorActivationStatus(_ context.Context, key domain.SensorKey, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, sensorEvent{key: key, active: active})

	return s.err
}

// TestPublisher_Topics verifies every listener event lands on its retained topic.
func TestPublisher_Topics(t *testing.T) {
	t.Parallel()

	var (
		ctx       = context.Background()
		client    = NewFake()
		publisher = NewPublisher(client, "home/security/")
		fixedNow  = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	)

	publisher.now = func() time.Time { return fixedNow }

	publisher.AlarmStatusChanged(ctx, domain.Alarm)
	publisher.ArmingStatusChanged(ctx, domain.ArmedAway)
	publisher.CatDetected(ctx, true)
	publisher.SensorsChanged(ctx, []domain.Sensor{{Name: "front", Type: domain.Door, Active: true}})

	messages := client.Published()
	require.Len(t, messages, 4)

	wantTopics := []string{
		"home/security/alarm",
		"home/security/arming",
		"home/security/cat",
		"home/security/sensors",
	}

	for i, message := range messages {
		require.Equal(t, wantTopics[i], message.Topic)
		require.True(t, message.Retained)
		require.Equal(t, QoSAtLeastOnce, message.QoS)
	}

	var alarm alarmPayload
	require.NoError(t, json.Unmarshal(messages[0].Payload, &alarm))
	require.Equal(t, "ALARM", alarm.AlarmStatus)
	require.Equal(t, domain.Alarm.Description(), alarm.Description)
	require.True(t, fixedNow.Equal(alarm.Timestamp))

	var cat catPayload
	require.NoError(t, json.Unmarshal(messages[2].Payload, &cat))
	require.True(t, cat.CatDetected)

	var sensors sensorsPayload
	require.NoError(t, json.Unmarshal(messages[3].Payload, &sensors))
	require.Equal(t, []sensorPayload{{Name: "front", Type: "DOOR", Active: true}}, sensors.Sensors)
}

// TestPublisher_FailureIsSwallowed ensures broker errors do not panic or propagate.
func TestPublisher_FailureIsSwallowed(t *testing.T) {
	t.Parallel()

	client := NewFake()
	client.PublishErr = errTestBroker

	require.NotPanics(t, func() {
		NewPublisher(client, "catpoint").AlarmStatusChanged(context.Background(), domain.PendingAlarm)
	})
	require.Empty(t, client.Published())
}

// TestSensorSubscriber_ForwardsEvents checks topic and payload parsing end-to-end.
func TestSensorSubscriber_ForwardsEvents(t *testing.T) {
	t.Parallel()

	var (
		client     = NewFake()
		sink       = new(recordingSink)
		subscriber = NewSensorSubscriber(client, "catpoint/security", sink)
	)

	require.NoError(t, subscriber.Start(context.Background()))
	require.Equal(t, "catpoint/security/sensor/+/+", subscriber.Filter())

	require.Equal(t, 1, client.Deliver("catpoint/security/sensor/DOOR/front", []byte("ON")))
	require.Equal(t, 1, client.Deliver("catpoint/security/sensor/window/kitchen", []byte(" false\n")))
	require.Equal(t, 1, client.Deliver("catpoint/security/sensor/MOTION/hall", []byte("maybe")))
	require.Equal(t, 1, client.Deliver("catpoint/security/sensor/CHIMNEY/top", []byte("1")))
	require.Zero(t, client.Deliver("catpoint/security/sensor/DOOR/front/extra", []byte("1")))
	require.Zero(t, client.Deliver("other/sensor/DOOR/front", []byte("1")))

	require.Equal(t, []sensorEvent{
		{key: domain.SensorKey{Name: "front", Type: domain.Door}, active: true},
		{key: domain.SensorKey{Name: "kitchen", Type: domain.Window}, active: false},
	}, sink.events)
}

// TestSensorSubscriber_SinkErrorIsLogged keeps the subscription alive after engine errors.
func TestSensorSubscriber_SinkErrorIsLogged(t *testing.T) {
	t.Parallel()

	client := NewFake()
	sink := &recordingSink{err: errTestBroker}

	require.NoError(t, NewSensorSubscriber(client, "p", sink).Start(context.Background()))

	client.Deliver("p/sensor/DOOR/front", []byte("on"))
	client.Deliver("p/sensor/DOOR/front", []byte("off"))

	require.Len(t, sink.events, 2)
}

// TestSensorSubscriber_SubscribeError propagates broker failures.
func TestSensorSubscriber_SubscribeError(t *testing.T) {
	t.Parallel()

	client := NewFake()
	client.SubscribeErr = errTestBroker

	err := NewSensorSubscriber(client, "p", new(recordingSink)).Start(context.Background())
	require.ErrorIs(t, err, errTestBroker)
}

// TestParseActive covers accepted payload spellings.
func TestParseActive(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{"ON", "on", "true", "TRUE", "1"} {
		active, err := parseActive([]byte(payload))
		require.NoError(t, err, payload)
		require.True(t, active, payload)
	}

	for _, payload := range []string{"OFF", "false", "0"} {
		active, err := parseActive([]byte(payload))
		require.NoError(t, err, payload)
		require.False(t, active, payload)
	}

	_, err := parseActive([]byte("open"))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

// TestTopicMatches covers MQTT wildcard rules used by Fake.
func TestTopicMatches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		filter, topic string
		want          bool
	}{
		{"a/+/c", "a/b/c", true},
		{"a/+/c", "a/b/d", false},
		{"a/#", "a/b/c", true},
		{"a/+", "a/b/c", false},
		{"a/b", "a/b", true},
		{"a/b/c", "a/b", false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, topicMatches(tc.filter, tc.topic), tc.filter+" "+tc.topic)
	}

	client := NewFake()
	client.Close()
	require.True(t, client.Closed())
}

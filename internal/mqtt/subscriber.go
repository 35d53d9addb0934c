package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

// sensorTopicLevel is the topic level that precedes <TYPE>/<name>.
const sensorTopicLevel = "sensor"

var (
	// ErrInvalidTopic is returned for topics outside <prefix>/sensor/<TYPE>/<name>.
	ErrInvalidTopic = errors.New("invalid sensor topic")
	// ErrInvalidPayload is returned for payloads that are not an on/off value.
	ErrInvalidPayload = errors.New("invalid sensor payload")
)

// SensorSink receives sensor activation events.
type SensorSink interface {
	ChangeSensorActivationStatus(ctx context.Context, key domain.SensorKey, active bool) error
}

// SensorSubscriber forwards remote sensor events into the engine.
type SensorSubscriber struct {
	// client receives messages from the broker.
	client Client
	// prefix is the topic prefix without a trailing slash.
	prefix string
	// sink applies activation changes.
	sink SensorSink
}

// NewSensorSubscriber creates a subscriber for sensors under prefix.
func NewSensorSubscriber(client Client, prefix string, sink SensorSink) *SensorSubscriber {
	return &SensorSubscriber{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		sink:   sink,
	}
}

// Filter returns the topic filter the subscriber listens on.
func (s *SensorSubscriber) Filter() string {
	return s.prefix + "/" + sensorTopicLevel + "/+/+"
}

// Start subscribes to sensor topics. Messages are handled with ctx until the client is closed.
func (s *SensorSubscriber) Start(ctx context.Context) error {
	ctx = logger.WithName(ctx, "mqtt-sensors")

	err := s.client.Subscribe(ctx, s.Filter(), QoSAtLeastOnce, func(topic string, payload []byte) {
		s.handle(ctx, topic, payload)
	})
	if err != nil {
		return fmt.Errorf("subscribe to sensor events: %w", err)
	}

	logger.InfoKV(ctx, "Listening for remote sensor events", "filter", s.Filter())

	return nil
}

// handle parses and applies one sensor message.
func (s *SensorSubscriber) handle(ctx context.Context, topic string, payload []byte) {
	key, err := s.parseTopic(topic)
	if err != nil {
		logger.WarnKV(ctx, "Ignoring MQTT sensor message", "topic", topic, "error", err)

		return
	}

	active, err := parseActive(payload)
	if err != nil {
		logger.WarnKV(ctx, "Ignoring MQTT sensor message", "topic", topic, "error", err)

		return
	}

	if err = s.sink.ChangeSensorActivationStatus(ctx, key, active); err != nil {
		logger.WarnKV(ctx, "Failed to apply MQTT sensor event", "sensor", key.String(), "error", err)
	}
}

// parseTopic extracts the sensor key from <prefix>/sensor/<TYPE>/<name>.
func (s *SensorSubscriber) parseTopic(topic string) (domain.SensorKey, error) {
	rest, ok := strings.CutPrefix(topic, s.prefix+"/"+sensorTopicLevel+"/")
	if !ok {
		return domain.SensorKey{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	typeName, name, ok := strings.Cut(rest, "/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return domain.SensorKey{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	sensorType, err := domain.ParseSensorType(typeName)
	if err != nil {
		return domain.SensorKey{}, err
	}

	return domain.SensorKey{
		Name: name,
		Type: sensorType,
	}, nil
}

// parseActive accepts ON/OFF, true/false and 1/0 in any case.
func parseActive(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
}

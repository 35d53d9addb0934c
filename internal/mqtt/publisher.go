package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

// Status topic suffixes under the configured prefix.
const (
	TopicAlarm   = "alarm"
	TopicArming  = "arming"
	TopicCat     = "cat"
	TopicSensors = "sensors"
)

// alarmPayload is published to the alarm topic.
type alarmPayload struct {
	AlarmStatus string    `json:"alarm_status"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// armingPayload is published to the arming topic.
type armingPayload struct {
	ArmingStatus string    `json:"arming_status"`
	Description  string    `json:"description"`
	Timestamp    time.Time `json:"timestamp"`
}

// catPayload is published to the cat topic.
type catPayload struct {
	CatDetected bool      `json:"cat_detected"`
	Timestamp   time.Time `json:"timestamp"`
}

// sensorPayload is one sensor inside sensorsPayload.
type sensorPayload struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// sensorsPayload is published to the sensors topic.
type sensorsPayload struct {
	Sensors   []sensorPayload `json:"sensors"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher mirrors status changes to retained MQTT topics.
// It implements notify.Listener; publish failures are logged, never returned,
// so a broker outage cannot block alarm decisions.
type Publisher struct {
	// client sends messages to the broker.
	client Client
	// prefix is the topic prefix without a trailing slash.
	prefix string
	// now returns the event timestamp.
	now func() time.Time
}

// NewPublisher creates a Publisher writing under prefix.
func NewPublisher(client Client, prefix string) *Publisher {
	return &Publisher{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		now:    time.Now,
	}
}

// Topic returns the full topic for a status suffix.
func (p *Publisher) Topic(suffix string) string {
	return p.prefix + "/" + suffix
}

// AlarmStatusChanged publishes the new alarm status.
func (p *Publisher) AlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) {
	p.publish(ctx, TopicAlarm, alarmPayload{
		AlarmStatus: status.String(),
		Description: status.Description(),
		Timestamp:   p.now().UTC(),
	})
}

// ArmingStatusChanged publishes the new arming status.
func (p *Publisher) ArmingStatusChanged(ctx context.Context, status domain.ArmingStatus) {
	p.publish(ctx, TopicArming, armingPayload{
		ArmingStatus: status.String(),
		Description:  status.Description(),
		Timestamp:    p.now().UTC(),
	})
}

// CatDetected publishes the classification result.
func (p *Publisher) CatDetected(ctx context.Context, detected bool) {
	p.publish(ctx, TopicCat, catPayload{
		CatDetected: detected,
		Timestamp:   p.now().UTC(),
	})
}

// SensorsChanged publishes the whole sensor list.
func (p *Publisher) SensorsChanged(ctx context.Context, sensors []domain.Sensor) {
	payload := sensorsPayload{
		Sensors:   make([]sensorPayload, 0, len(sensors)),
		Timestamp: p.now().UTC(),
	}

	for _, sensor := range sensors {
		payload.Sensors = append(payload.Sensors, sensorPayload{
			Name:   sensor.Name,
			Type:   sensor.Type.String(),
			Active: sensor.Active,
		})
	}

	p.publish(ctx, TopicSensors, payload)
}

// publish encodes and sends one retained message.
func (p *Publisher) publish(ctx context.Context, suffix string, payload any) {
	topic := p.Topic(suffix)

	data, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode MQTT payload", "topic", topic, "error", err)

		return
	}

	if err = p.client.Publish(ctx, topic, QoSAtLeastOnce, true, data); err != nil {
		logger.WarnKV(ctx, "Failed to publish MQTT message", "topic", topic, "error", err)
	}
}

package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/logger"
)

// disconnectQuiesce is how long Close waits for in-flight work, in milliseconds.
const disconnectQuiesce = 1000

var (
	// errConnectTimeout is returned when the broker does not answer in time.
	errConnectTimeout = errors.New("mqtt connection timeout")
	// errOperationTimeout is returned when a publish or subscribe is not acknowledged in time.
	errOperationTimeout = errors.New("mqtt operation timeout")
)

// Real talks to an actual MQTT broker.
type Real struct {
	// client is the underlying paho client.
	client paho.Client
	// timeout bounds every broker round trip.
	timeout time.Duration
}

// Dial connects to the broker described by settings.
func Dial(ctx context.Context, settings config.MQTTConfig, timeout time.Duration) (*Real, error) {
	opts := paho.NewClientOptions().
		AddBroker(settings.Broker).
		SetClientID(settings.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(true).
		SetOnConnectHandler(func(paho.Client) {
			logger.InfoKV(ctx, "Connected to MQTT broker", "broker", settings.Broker)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.WarnKV(ctx, "MQTT connection lost", "error", err)
		})

	if settings.Username != "" {
		opts.SetUsername(settings.Username)
	}

	if settings.Password != "" {
		opts.SetPassword(settings.Password)
	}

	client := paho.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w: %s", errConnectTimeout, settings.Broker)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &Real{
		client:  client,
		timeout: timeout,
	}, nil
}

// Publish sends a payload and waits for the broker acknowledgement.
func (r *Real) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if err := r.wait(ctx, r.client.Publish(topic, qos, retained, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

// Subscribe registers a handler for a topic filter.
func (r *Real) Subscribe(ctx context.Context, filter string, qos byte, handler MessageHandler) error {
	callback := func(_ paho.Client, message paho.Message) {
		handler(message.Topic(), message.Payload())
	}

	if err := r.wait(ctx, r.client.Subscribe(filter, qos, callback)); err != nil {
		return fmt.Errorf("subscribe to %s: %w", filter, err)
	}

	return nil
}

// Close disconnects from the broker.
func (r *Real) Close() {
	r.client.Disconnect(disconnectQuiesce)
}

// wait blocks until the token completes, the timeout passes or ctx is done.
func (r *Real) wait(ctx context.Context, token paho.Token) error {
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errOperationTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

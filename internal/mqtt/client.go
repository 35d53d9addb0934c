package mqtt

import "context"

// QoS levels used by the bridge.
const (
	// QoSAtMostOnce is fire-and-forget delivery.
	QoSAtMostOnce byte = 0
	// QoSAtLeastOnce is acknowledged delivery.
	QoSAtLeastOnce byte = 1
)

// MessageHandler processes one incoming message.
type MessageHandler func(topic string, payload []byte)

// Client is the subset of broker operations the bridge needs.
type Client interface {
	// Publish sends a payload to a topic.
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
	// Subscribe registers a handler for a topic filter, wildcards allowed.
	Subscribe(ctx context.Context, filter string, qos byte, handler MessageHandler) error
	// Close disconnects from the broker.
	Close()
}

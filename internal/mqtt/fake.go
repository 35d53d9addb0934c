package mqtt

import (
	"context"
	"strings"
	"sync"
)

// Message is a published message recorded by Fake.
type Message struct {
	// Topic is the destination topic.
	Topic string
	// Payload is the message body.
	Payload []byte
	// QoS is the requested delivery level.
	QoS byte
	// Retained reports whether the broker should keep the message.
	Retained bool
}

// subscription is a handler bound to a topic filter.
type subscription struct {
	// filter is the topic filter, wildcards allowed.
	filter string
	// handler processes matching messages.
	handler MessageHandler
}

// Fake is an in-memory Client for tests.
type Fake struct {
	// published holds every published message in order.
	published []Message
	// subscriptions are the registered handlers.
	subscriptions []subscription
	// PublishErr, if set, is returned by Publish.
	PublishErr error
	// SubscribeErr, if set, is returned by Subscribe.
	SubscribeErr error
	// closed tracks whether Close was called.
	closed bool
	// mu protects the fields above.
	mu sync.Mutex
}

// NewFake creates an empty Fake client.
func NewFake() *Fake {
	return new(Fake)
}

// Publish records the message.
func (f *Fake) Publish(_ context.Context, topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishErr != nil {
		return f.PublishErr
	}

	f.published = append(f.published, Message{
		Topic:    topic,
		Payload:  append([]byte(nil), payload...),
		QoS:      qos,
		Retained: retained,
	})

	return nil
}

// Subscribe records the handler.
func (f *Fake) Subscribe(_ context.Context, filter string, _ byte, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SubscribeErr != nil {
		return f.SubscribeErr
	}

	f.subscriptions = append(f.subscriptions, subscription{filter: filter, handler: handler})

	return nil
}

// Close marks the client closed.
func (f *Fake) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

// Published returns a copy of the published messages.
func (f *Fake) Published() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Message(nil), f.published...)
}

// Deliver simulates an incoming message, calling every matching handler.
// It returns the number of handlers called.
func (f *Fake) Deliver(topic string, payload []byte) int {
	f.mu.Lock()
	subscriptions := append([]subscription(nil), f.subscriptions...)
	f.mu.Unlock()

	delivered := 0

	for _, sub := range subscriptions {
		if topicMatches(sub.filter, topic) {
			sub.handler(topic, payload)
			delivered++
		}
	}

	return delivered
}

// topicMatches applies MQTT filter rules: "+" matches one level, "#" the rest.
func topicMatches(filter, topic string) bool {
	var (
		filterLevels = strings.Split(filter, "/")
		topicLevels  = strings.Split(topic, "/")
	)

	for i, level := range filterLevels {
		if level == "#" {
			return true
		}

		if i >= len(topicLevels) {
			return false
		}

		if level != "+" && level != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}

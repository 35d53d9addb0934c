// Package mqtt bridges the security system to an MQTT broker.
//
// Publisher is a status listener that mirrors alarm, arming, cat and sensor
// changes to retained topics under a configurable prefix. SensorSubscriber
// consumes remote sensor events from <prefix>/sensor/<TYPE>/<name> and feeds
// them into the decision engine. Both talk to the broker through the Client
// interface, implemented by Real (paho) and Fake (tests).
package mqtt

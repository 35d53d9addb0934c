// Package config defines the settings used by the catpoint binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Config holds the gRPC address, the storage backend, the image classifier
// and the optional MQTT and GPIO integrations.
package config

// Package server runs the catpoint-server process.
//
// Run loads settings, builds the configured repository backend and image
// classifier, wires the decision engine to its listeners and optional MQTT and
// GPIO inputs, and serves the gRPC API until the context is canceled.
package server

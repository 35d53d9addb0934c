// Package security contains core domain types of the security controller.
//
// It defines sensors with their (name, type) identity, the alarm and arming
// status enumerations and the Snapshot value handed to transports and
// listeners. The package has no dependencies on storage or transport.
package security

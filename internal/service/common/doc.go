// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client wrapper with timeouts that decodes
// server snapshots into domain types, and utilities to detect the current
// system actor (hostname/username) sent along with every call for audit.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

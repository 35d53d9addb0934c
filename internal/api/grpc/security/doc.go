// Package security implements the gRPC transport for the security service.
//
// It converts protobuf well-known messages to domain types, calls into a
// provided business-service interface and maps domain errors to gRPC status
// codes. Every unary call answers with the resulting system snapshot.
package security

// Package pb defines the wire contract of catpoint.v1.SecurityService,
// declared in api/catpoint/v1/security.proto.
//
// Messages are protobuf well-known types (Struct, StringValue, BytesValue,
// Empty), so the service descriptor, client stub and conversions between
// domain values and messages are maintained by hand in this package instead
// of being generated. Keep them in sync with the .proto file.
package pb

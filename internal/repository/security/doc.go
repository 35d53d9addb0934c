// Package security implements persistence for the security system state:
// the alarm status, the arming status and the set of known sensors.
//
// Repository is the interface the decision engine depends on. Backends:
//   - MemoryRepository keeps everything in process memory,
//   - FileRepository stores the state as protobuf JSON on disk,
//   - RedisRepository keeps statuses and CBOR-encoded sensors in Redis,
//   - PostgresRepository stores the state in two PostgreSQL tables.
package security

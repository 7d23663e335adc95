// Package rdb implements NimbusKV's snapshot engine (spec §4.6/§6,
// component C7): a bit-exact binary file format with a 9-byte header,
// per-database opcodes, a three-tier variable-length integer encoding,
// and a trailing little-endian CRC64 checksum over everything before it.
//
// Save walks a keyspace via internal/keyspace.Database.CreateSnapshot so
// a background save never blocks command execution, matching spec
// §4.6's "reads the keyspace via a Dict snapshot" requirement. At most
// one save runs at a time, enforced by a non-reentrant guard
// (github.com/gofrs/flock), mirroring the teacher's non-reentrant
// migration guard in torua/internal/coordinator.
package rdb

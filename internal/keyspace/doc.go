// Package keyspace implements NimbusKV's keyspace (spec §3/§6, component
// C6): a fixed array of numbered databases, each owning its own
// internal/dict.Dict from key to internal/values.Value.
//
// TTL handling follows spec §3's "lazy delete on access, eager skip on
// walk" rule: Get/Contains delete an expired key the moment they observe
// it, while Entries (used by snapshot and replication full-sync)
// simply skip expired keys without mutating the dict mid-iteration.
package keyspace

// Package bytestr implements NimbusKV's immutable byte-string value, the
// type every key and every scalar value in the keyspace is ultimately made
// of.
//
// # Overview
//
// A Str owns its bytes and never exposes them for in-place mutation. Two
// construction modes are provided:
//
//   - FromBytesCopy defensively copies the input, for callers that don't
//     want to give up ownership of their buffer.
//   - FromBytesTrusted takes ownership without copying, for callers (the
//     RESP decoder, the AOF replayer) that already hold a private buffer
//     they're done with.
//
// Every Str carries a hash computed once at construction, so dict lookups
// never re-hash a key. A small process-lifetime intern table holds shared
// instances for the set of command names NimbusKV's callers look up
// frequently, following the "global mutable state becomes a lazily
// initialized table built during startup" guidance for this kind of
// system.
//
// # Thread safety
//
// Str values are immutable after construction and safe for concurrent
// reads from any number of goroutines. The intern table is built once,
// eagerly, at package init and is read-only thereafter.
package bytestr

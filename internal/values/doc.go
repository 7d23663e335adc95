// Package values implements NimbusKV's value types (spec §3/§4.4,
// component C5): String, List, Set, Hash, and SortedSet, built on top of
// internal/dynbuf, internal/dict and internal/zskiplist.
//
// Every type carries an optional absolute expiry timestamp in Unix
// milliseconds (NoExpiry ⇒ none) and exposes only the operations its
// commands need — there is no generic "value" CRUD surface beyond that.
// Each type also implements ToCommands, a self-serialization to the
// command arrays that would reconstruct it (e.g. a three-field Hash
// serializes to one HSET with three field/value pairs). internal/aof's
// bgrewrite walks the keyspace and calls ToCommands rather than encoding
// internal layout; internal/rdb writes its own binary encoding instead.
package values

// Package dict implements NimbusKV's concurrent dictionary: an
// incremental-rehash hash table with copy-on-write snapshots. It backs
// every keyspace database and every Hash/Set/SortedSet value (spec §3,
// component C3).
//
// # Architecture
//
//	┌────────────────────────────────────────────┐
//	│                   Dict[V]                   │
//	├────────────────────────────────────────────┤
//	│  mu          sync.Mutex                     │
//	│  ht0, ht1    table[V]   (two generations)   │
//	│  rehashCur   int64      (-1 = idle)         │
//	├────────────────────────────────────────────┤
//	│  Put/Get/Remove: up to 5 rehash steps,      │
//	│  then the op itself. Reads check ht0 then   │
//	│  ht1; writes land in ht1 while rehashing.   │
//	└────────────────────────────────────────────┘
//
// Keys are always bytestr.Str; values are generic. This specializes the
// "concurrent dict" of spec §4.2 to the byte-string keys every caller in
// this system actually uses (the keyspace's key→value map, a Hash's
// field→value map, a Set's member→unit map, a SortedSet's member→score
// map), rather than offering a fully generic comparable-key map nothing
// in this repository needs.
//
// # Incremental rehash
//
// A Dict never rehashes all at once. Each Put/Get/Remove performs up to
// 5 rehash steps (migrating one non-empty ht0 bucket into ht1 per step,
// skipping up to 10 empty buckets in the same call) before doing its own
// work, bounding the pause any single caller can observe regardless of
// table size.
//
// # Copy-on-write snapshots
//
// Every bucket chain is built from immutable nodes: Put and Remove never
// mutate an existing node, they publish a new chain (reusing the
// unchanged tail) and let the garbage collector reclaim nodes no longer
// referenced by the live table or by any outstanding Snapshot. A
// Snapshot therefore costs O(buckets) to create — it's just a pinned
// copy of the two tables' bucket-head slices — and is immune to every
// subsequent mutation on the live Dict, satisfying spec §4.2's isolation
// and cost requirements without a reference-counted copy-on-write path
// that would only pay off when no snapshot is live.
package dict

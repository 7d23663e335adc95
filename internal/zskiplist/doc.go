// Package zskiplist implements NimbusKV's ordered index: a probabilistic
// skip list keyed by (score, member), used as the ordered side of every
// SortedSet value (spec §3/§4.3, component C4).
//
// Nodes carry a forward pointer per level plus a span per level — the
// number of nodes that pointer jumps over — which is what makes
// GetByRank/RankOf O(log N) rather than O(N): a rank query walks down
// from the top level, summing spans as it goes, instead of counting
// nodes one at a time.
//
// Ordering is ascending by score first, then by member's byte-lexical
// order (bytestr.Str.CompareLex), with at most one entry per (score,
// member) pair — duplicate rejection for a given member (regardless of
// score) is the sorted-set layer's job (internal/values), not this
// package's; zskiplist itself only rejects an exact (score, member)
// duplicate pair, which Insert reports via its bool return.
//
// This is the canonical sorted-set representation per spec §9's Open
// Questions resolution: the source's alternative ordered-map-of-sets
// implementation is not carried forward.
package zskiplist

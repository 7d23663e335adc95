package dict

import (
	"iter"
	"sync"

	"github.com/dreamware/nimbuskv/internal/bytestr"
)

const (
	initialSize       = 4
	rehashStepsPerOp   = 5
	rehashEmptySkipCap = 10
	expandLoadFactor   = 1.0
	contractLoadFactor = 1.0 / (10 * 4) // spec §4.2: 1/(10*4) = 0.025
)

// node is an immutable bucket-chain link. Nodes are never mutated after
// construction; a mutator that needs to change a bucket publishes a new
// head whose tail may reuse existing nodes.
type node[V any] struct {
	key  bytestr.Str
	val  V
	next *node[V]
}

// table is one generation of the dict's hash table. size is always a
// power of two (or zero for an inactive second table).
type table[V any] struct {
	buckets []*node[V]
	size    int
	used    int
}

func newTable[V any](size int) table[V] {
	if size == 0 {
		return table[V]{}
	}
	return table[V]{buckets: make([]*node[V], size), size: size}
}

func (t *table[V]) slot(hash uint64) int {
	return int(hash & uint64(t.size-1))
}

// Dict is a concurrent, incremental-rehash hash table keyed by
// bytestr.Str. The zero value is not usable; construct with New.
type Dict[V any] struct {
	mu           sync.Mutex
	ht0, ht1     table[V]
	rehashCursor int64
}

// New returns an empty Dict ready for use.
func New[V any]() *Dict[V] {
	return &Dict[V]{
		ht0:          newTable[V](initialSize),
		rehashCursor: -1,
	}
}

// rehashing reports whether an incremental rehash is currently in
// flight. Caller must hold d.mu.
func (d *Dict[V]) rehashing() bool { return d.rehashCursor >= 0 }

// stepRehash performs up to rehashStepsPerOp bucket migrations, skipping
// up to rehashEmptySkipCap empty ht0 buckets along the way, and finishes
// the rehash (promoting ht1 to ht0) once the cursor reaches the end.
// Caller must hold d.mu.
func (d *Dict[V]) stepRehash() {
	if !d.rehashing() {
		return
	}

	emptyBudget := rehashEmptySkipCap
	for step := 0; step < rehashStepsPerOp; step++ {
		if d.rehashCursor >= int64(d.ht0.size) {
			d.finishRehash()
			return
		}

		idx := int(d.rehashCursor)
		head := d.ht0.buckets[idx]
		if head == nil {
			d.rehashCursor++
			emptyBudget--
			if emptyBudget <= 0 {
				return
			}
			step-- // an empty bucket doesn't consume a "move" step
			continue
		}

		for n := head; n != nil; {
			next := n.next
			d.insertInto(&d.ht1, n.key, n.val)
			n = next
		}
		d.ht0.used -= chainLen(head)
		d.ht0.buckets[idx] = nil
		d.rehashCursor++
	}
}

func chainLen[V any](n *node[V]) int {
	c := 0
	for ; n != nil; n = n.next {
		c++
	}
	return c
}

func (d *Dict[V]) finishRehash() {
	d.ht0 = d.ht1
	d.ht1 = table[V]{}
	d.rehashCursor = -1
}

// insertInto prepends a fresh node for (k, v) into t, without checking
// for an existing key — callers must ensure k is not already present in
// t (rehash migration guarantees this; Put/Remove handle dedup
// themselves before calling this).
func (d *Dict[V]) insertInto(t *table[V], k bytestr.Str, v V) {
	idx := t.slot(k.Hash())
	t.buckets[idx] = &node[V]{key: k, val: v, next: t.buckets[idx]}
	t.used++
}

// removeFrom removes k from t if present, rebuilding only the prefix of
// the chain up to and including the removed node; the tail beyond it is
// shared, not copied, matching the COW discipline. Returns the removed
// value and whether it was found.
func removeFrom[V any](t *table[V], k bytestr.Str) (old V, found bool) {
	if t.size == 0 {
		return old, false
	}
	idx := t.slot(k.Hash())
	head := t.buckets[idx]
	if head == nil {
		return old, false
	}

	// Find the matching node and how many nodes precede it.
	var prefix []*node[V]
	for n := head; n != nil; n = n.next {
		if n.key.Equals(k) {
			// Rebuild the prefix (nodes before the removed one) as new
			// nodes pointing at the node's former tail, preserving
			// insertion-order (most-recent-first) semantics.
			newTail := n.next
			for i := len(prefix) - 1; i >= 0; i-- {
				newTail = &node[V]{key: prefix[i].key, val: prefix[i].val, next: newTail}
			}
			t.buckets[idx] = newTail
			t.used--
			return n.val, true
		}
		prefix = append(prefix, n)
	}
	return old, false
}

// putInto inserts or replaces (k, v) in t, rebuilding the chain prefix up
// to any existing entry for k (COW) and prepending fresh otherwise.
// Returns the previous value, if any.
func putInto[V any](t *table[V], k bytestr.Str, v V) (old V, existed bool) {
	idx := t.slot(k.Hash())
	head := t.buckets[idx]

	var prefix []*node[V]
	for n := head; n != nil; n = n.next {
		if n.key.Equals(k) {
			newTail := n.next
			replacement := &node[V]{key: k, val: v, next: newTail}
			newTail = replacement
			for i := len(prefix) - 1; i >= 0; i-- {
				newTail = &node[V]{key: prefix[i].key, val: prefix[i].val, next: newTail}
			}
			t.buckets[idx] = newTail
			return n.val, true
		}
		prefix = append(prefix, n)
	}

	// Not found: prepend fresh (most-recent-first).
	t.buckets[idx] = &node[V]{key: k, val: v, next: head}
	t.used++
	return old, false
}

// Put inserts or replaces the value for k, returning the prior value (if
// any) and whether it existed. Every key value is valid; bytestr.Str has
// no null representation, so spec §4.2's "put(null_key) fails" case does
// not arise here.
func (d *Dict[V]) Put(k bytestr.Str, v V) (old V, existed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stepRehash()

	if d.rehashing() {
		// Writes land in ht1 while rehashing; remove any stale copy from
		// either table first so a key never lives in both at once.
		if old, existed = removeFrom(&d.ht0, k); !existed {
			old, existed = removeFrom(&d.ht1, k)
		}
		d.insertInto(&d.ht1, k, v)
		return old, existed
	}

	old, existed = putInto(&d.ht0, k, v)
	d.maybeStartExpansion()
	return old, existed
}

// Get returns the value for k, if present.
func (d *Dict[V]) Get(k bytestr.Str) (v V, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stepRehash()
	return d.lookup(k)
}

// lookup probes ht0 then ht1. Caller must hold d.mu.
func (d *Dict[V]) lookup(k bytestr.Str) (v V, ok bool) {
	if v, ok = getFrom(&d.ht0, k); ok {
		return v, true
	}
	if d.ht1.size > 0 {
		return getFrom(&d.ht1, k)
	}
	return v, false
}

func getFrom[V any](t *table[V], k bytestr.Str) (v V, ok bool) {
	if t.size == 0 {
		return v, false
	}
	idx := t.slot(k.Hash())
	for n := t.buckets[idx]; n != nil; n = n.next {
		if n.key.Equals(k) {
			return n.val, true
		}
	}
	return v, false
}

// Contains reports whether k is present.
func (d *Dict[V]) Contains(k bytestr.Str) bool {
	_, ok := d.Get(k)
	return ok
}

// Remove deletes k, returning its value if it was present.
func (d *Dict[V]) Remove(k bytestr.Str) (old V, existed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stepRehash()

	old, existed = removeFrom(&d.ht0, k)
	if !existed && d.ht1.size > 0 {
		old, existed = removeFrom(&d.ht1, k)
	}

	if existed && !d.rehashing() {
		d.maybeStartContraction()
	}
	return old, existed
}

// Size returns the total number of entries across both generations.
func (d *Dict[V]) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ht0.used + d.ht1.used
}

// maybeStartExpansion begins an incremental expansion if the load factor
// exceeds 1.0 and no rehash is already in progress. Caller must hold
// d.mu.
func (d *Dict[V]) maybeStartExpansion() {
	if d.rehashing() {
		return
	}
	if float64(d.ht0.used)/float64(d.ht0.size) <= expandLoadFactor {
		return
	}
	d.ht1 = newTable[V](d.ht0.size * 2)
	d.rehashCursor = 0
}

// maybeStartContraction begins an incremental contraction if the load
// factor has fallen below the contraction threshold, the table is above
// its initial size, and no rehash is already in progress. Caller must
// hold d.mu.
func (d *Dict[V]) maybeStartContraction() {
	if d.ht0.size <= initialSize {
		return
	}
	if float64(d.ht0.used)/float64(d.ht0.size) >= contractLoadFactor {
		return
	}
	target := nextPow2(d.ht0.used * 2)
	if target < initialSize {
		target = initialSize
	}
	if target >= d.ht0.size {
		return
	}
	d.ht1 = newTable[V](target)
	d.rehashCursor = 0
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Keys returns a weakly-consistent iterator over all keys: it never
// fails under concurrent mutation, may reflect either a pre- or
// post-mutation value for any given key, but never misses a key present
// throughout the iteration and never visits a key twice. It is
// implemented over an ephemeral Snapshot, so its cost and consistency
// guarantees are exactly the Snapshot's.
func (d *Dict[V]) Keys() iter.Seq[bytestr.Str] {
	snap := d.CreateSnapshot()
	return snap.Keys()
}

// Entries returns a weakly-consistent iterator over all (key, value)
// pairs; see Keys for the consistency contract.
func (d *Dict[V]) Entries() iter.Seq2[bytestr.Str, V] {
	snap := d.CreateSnapshot()
	return snap.Entries()
}

// Snapshot is a logical freeze of a Dict at the moment CreateSnapshot
// was called. Because dict nodes are never mutated in place, a Snapshot
// is simply a pinned copy of both generations' bucket-head slices:
// capturing it costs O(buckets), and no mutation on the live Dict after
// this call can ever become visible through it.
type Snapshot[V any] struct {
	heads0 []*node[V]
	heads1 []*node[V]
}

// CreateSnapshot returns a logical freeze of d at this call's
// linearization point.
func (d *Dict[V]) CreateSnapshot() *Snapshot[V] {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := &Snapshot[V]{
		heads0: make([]*node[V], len(d.ht0.buckets)),
	}
	copy(s.heads0, d.ht0.buckets)
	if d.ht1.size > 0 {
		s.heads1 = make([]*node[V], len(d.ht1.buckets))
		copy(s.heads1, d.ht1.buckets)
	}
	return s
}

// FinishSnapshot releases s. Since Snapshot nodes are ordinary immutable
// Go values kept alive only by s's own slices, this simply drops s's
// references so the garbage collector may reclaim any node no longer
// reachable from the live Dict.
func (d *Dict[V]) FinishSnapshot(s *Snapshot[V]) {
	s.heads0 = nil
	s.heads1 = nil
}

// Get returns the value live in the Dict at the moment this Snapshot was
// created.
func (s *Snapshot[V]) Get(k bytestr.Str) (v V, ok bool) {
	if v, ok = lookupHeads(s.heads0, k); ok {
		return v, true
	}
	return lookupHeads(s.heads1, k)
}

func lookupHeads[V any](heads []*node[V], k bytestr.Str) (v V, ok bool) {
	if len(heads) == 0 {
		return v, false
	}
	idx := int(k.Hash() & uint64(len(heads)-1))
	for n := heads[idx]; n != nil; n = n.next {
		if n.key.Equals(k) {
			return n.val, true
		}
	}
	return v, false
}

// Keys iterates every key present at snapshot-creation time.
func (s *Snapshot[V]) Keys() iter.Seq[bytestr.Str] {
	return func(yield func(bytestr.Str) bool) {
		for _, heads := range [2][]*node[V]{s.heads0, s.heads1} {
			for _, head := range heads {
				for n := head; n != nil; n = n.next {
					if !yield(n.key) {
						return
					}
				}
			}
		}
	}
}

// Entries iterates every (key, value) pair present at snapshot-creation
// time.
func (s *Snapshot[V]) Entries() iter.Seq2[bytestr.Str, V] {
	return func(yield func(bytestr.Str, V) bool) {
		for _, heads := range [2][]*node[V]{s.heads0, s.heads1} {
			for _, head := range heads {
				for n := head; n != nil; n = n.next {
					if !yield(n.key, n.val) {
						return
					}
				}
			}
		}
	}
}

// Len returns the number of entries visible through s. This walks every
// chain (O(entries)), unlike creating the snapshot itself.
func (s *Snapshot[V]) Len() int {
	n := 0
	for range s.Entries() {
		n++
	}
	return n
}

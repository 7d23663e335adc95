package dict

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/dreamware/nimbuskv/internal/bytestr"
)

func key(n int) bytestr.Str { return bytestr.FromString(fmt.Sprintf("key-%d", n)) }

func TestPutGetRemoveRoundTrip(t *testing.T) {
	d := New[int]()

	d.Put(key(1), 100)
	if v, ok := d.Get(key(1)); !ok || v != 100 {
		t.Fatalf("got %v, %v", v, ok)
	}

	old, existed := d.Put(key(1), 200)
	if !existed || old != 100 {
		t.Fatalf("expected prior value 100, got %v existed=%v", old, existed)
	}
	if v, _ := d.Get(key(1)); v != 200 {
		t.Fatalf("got %v, want 200", v)
	}

	old, existed = d.Remove(key(1))
	if !existed || old != 200 {
		t.Fatalf("remove: got %v existed=%v", old, existed)
	}
	if _, ok := d.Get(key(1)); ok {
		t.Fatal("expected key gone after remove")
	}
}

// Property 1: random put/remove/get sequence — final Get(k) reflects the
// last Put(k, ·) not followed by a Remove(k).
func TestRandomSequenceRoundTrip(t *testing.T) {
	d := New[int]()
	want := make(map[string]int)
	present := make(map[string]bool)

	r := rand.New(rand.NewSource(1))
	const keyspace = 50
	for i := 0; i < 5000; i++ {
		k := r.Intn(keyspace)
		ks := fmt.Sprintf("k%d", k)
		switch r.Intn(3) {
		case 0, 1:
			v := r.Int()
			d.Put(key(k), v)
			want[ks] = v
			present[ks] = true
		case 2:
			d.Remove(key(k))
			present[ks] = false
		}
	}

	for k := 0; k < keyspace; k++ {
		ks := fmt.Sprintf("k%d", k)
		v, ok := d.Get(key(k))
		if present[ks] != ok {
			t.Fatalf("key %d: presence mismatch got=%v want=%v", k, ok, present[ks])
		}
		if ok && v != want[ks] {
			t.Fatalf("key %d: value mismatch got=%v want=%v", k, v, want[ks])
		}
	}
}

// Property 2: incremental rehash never loses keys.
func TestIncrementalRehashNeverLosesKeys(t *testing.T) {
	d := New[int]()
	const n = 2000

	for i := 0; i < n; i++ {
		d.Put(key(i), i)
		// Probe every previously-inserted key at every step boundary.
		for j := 0; j <= i; j++ {
			v, ok := d.Get(key(j))
			if !ok || v != j {
				t.Fatalf("after inserting %d keys, key %d missing or wrong (got %v, %v)", i+1, j, v, ok)
			}
		}
	}

	if d.Size() != n {
		t.Fatalf("size = %d, want %d", d.Size(), n)
	}
}

// Property 3: snapshot isolation.
func TestSnapshotIsolation(t *testing.T) {
	d := New[int]()
	for i := 0; i < 100; i++ {
		d.Put(key(i), i)
	}

	snap := d.CreateSnapshot()

	for i := 0; i < 100; i++ {
		d.Remove(key(i))
	}
	for i := 100; i < 200; i++ {
		d.Put(key(i), i*10)
	}

	for i := 0; i < 100; i++ {
		v, ok := snap.Get(key(i))
		if !ok || v != i {
			t.Fatalf("snapshot lost key %d: got %v, %v", i, v, ok)
		}
	}
	for i := 100; i < 200; i++ {
		if _, ok := snap.Get(key(i)); ok {
			t.Fatalf("snapshot saw post-creation insert of key %d", i)
		}
	}

	if d.Size() != 100 {
		t.Fatalf("live dict size = %d, want 100", d.Size())
	}
	if snap.Len() != 100 {
		t.Fatalf("snapshot len = %d, want 100", snap.Len())
	}
}

func TestSnapshotDuringRehash(t *testing.T) {
	d := New[int]()
	for i := 0; i < 10; i++ {
		d.Put(key(i), i)
	}
	// Force expansion to start.
	for i := 10; i < 20; i++ {
		d.Put(key(i), i)
	}

	snap := d.CreateSnapshot()
	seen := map[int]bool{}
	for k, v := range snap.Entries() {
		_ = k
		seen[v] = true
	}
	for i := 0; i < 20; i++ {
		if !seen[i] {
			t.Fatalf("snapshot during rehash missing value %d", i)
		}
	}
}

func TestKeysAndEntriesWeaklyConsistent(t *testing.T) {
	d := New[int]()
	for i := 0; i < 30; i++ {
		d.Put(key(i), i)
	}

	count := 0
	seen := map[string]bool{}
	for k := range d.Keys() {
		ks := k.String()
		if seen[ks] {
			t.Fatalf("key %s visited twice", ks)
		}
		seen[ks] = true
		count++
	}
	if count != 30 {
		t.Fatalf("count = %d, want 30", count)
	}
}

func TestContractionOnMassRemoval(t *testing.T) {
	d := New[int]()
	const n = 1000
	for i := 0; i < n; i++ {
		d.Put(key(i), i)
	}
	for i := 0; i < n-2; i++ {
		d.Remove(key(i))
	}
	if d.Size() != 2 {
		t.Fatalf("size = %d, want 2", d.Size())
	}
	for i := n - 2; i < n; i++ {
		if _, ok := d.Get(key(i)); !ok {
			t.Fatalf("lost surviving key %d after contraction", i)
		}
	}
}

package backlog

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestAppendAdvancesLatest(t *testing.T) {
	b := New(16, "run-1")
	off := b.Append([]byte("hello"))
	if off != 5 {
		t.Fatalf("latest = %d, want 5", off)
	}
	off = b.Append([]byte("world"))
	if off != 10 {
		t.Fatalf("latest = %d, want 10", off)
	}
}

func TestRangeSinceReturnsExactBytes(t *testing.T) {
	b := New(64, "run-1")
	b.Append([]byte("abc"))
	b.Append([]byte("def"))

	got, err := b.RangeSince(3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("def")) {
		t.Fatalf("got %q, want %q", got, "def")
	}

	got, err = b.RangeSince(0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("abcdef")) {
		t.Fatalf("got %q, want %q", got, "abcdef")
	}
}

func TestRangeSinceRejectsEvictedOffset(t *testing.T) {
	b := New(4, "run-1")
	b.Append([]byte("abcd"))
	b.Append([]byte("efgh")) // evicts the first 4 bytes entirely

	if _, err := b.RangeSince(0); err == nil {
		t.Fatal("expected an error for an evicted offset")
	}
	got, err := b.RangeSince(4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("efgh")) {
		t.Fatalf("got %q, want %q", got, "efgh")
	}
}

func TestRangeSinceRejectsFutureOffset(t *testing.T) {
	b := New(16, "run-1")
	b.Append([]byte("abc"))
	if _, err := b.RangeSince(100); err == nil {
		t.Fatal("expected an error for an offset past latest")
	}
}

func TestCapacityInvariantHolds(t *testing.T) {
	b := New(8, "run-1")
	for i := 0; i < 50; i++ {
		b.Append([]byte{byte(i)})
		if b.latest-b.earliest > b.capacity {
			t.Fatalf("retained window %d exceeds capacity %d", b.latest-b.earliest, b.capacity)
		}
	}
}

func TestCanServeChecksMasterIDAndWindow(t *testing.T) {
	b := New(16, "run-1")
	b.Append([]byte("hello"))

	if !b.CanServe("run-1", 0) {
		t.Fatal("expected CanServe to accept a within-window offset for the matching master id")
	}
	if b.CanServe("run-2", 0) {
		t.Fatal("expected CanServe to reject a mismatched master id")
	}
	if b.CanServe("run-1", 999) {
		t.Fatal("expected CanServe to reject an out-of-window offset")
	}
}

// TestAgainstReferenceModel fuzzes Append/RangeSince against a plain
// growing byte slice, checking that any RangeSince call the reference
// would also have in-window returns the same bytes.
func TestAgainstReferenceModel(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	capacity := 32
	b := New(capacity, "run-1")
	var all []byte

	for i := 0; i < 300; i++ {
		n := 1 + r.Intn(10)
		data := make([]byte, n)
		for j := range data {
			data[j] = byte(r.Intn(256))
		}
		b.Append(data)
		all = append(all, data...)

		earliest := b.Earliest()
		latest := b.Latest()
		if int(latest) != len(all) {
			t.Fatalf("latest = %d, want %d", latest, len(all))
		}
		if latest-earliest > int64(capacity) {
			t.Fatalf("window %d exceeds capacity %d", latest-earliest, capacity)
		}

		got, err := b.RangeSince(earliest)
		if err != nil {
			t.Fatal(err)
		}
		want := all[earliest:]
		if !bytes.Equal(got, want) {
			t.Fatalf("iteration %d: got %q, want %q", i, got, want)
		}
	}
}

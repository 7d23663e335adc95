package dynbuf

import "testing"

func TestSetAndBytes(t *testing.T) {
	b := New()
	b.Set([]byte("hello"))
	if string(b.Bytes()) != "hello" {
		t.Fatalf("got %q", b.Bytes())
	}
	if b.Len() != 5 {
		t.Fatalf("len = %d, want 5", b.Len())
	}
}

func TestGrowthPolicyUnderOneMiB(t *testing.T) {
	b := New()
	b.Set(make([]byte, 100))
	if b.Cap() < 200 {
		t.Fatalf("cap = %d, want >= 2x used len", b.Cap())
	}
	if b.Len() != b.Cap() && b.Cap() < 2*b.Len() {
		t.Fatalf("growth policy violated: len=%d cap=%d", b.Len(), b.Cap())
	}
}

func TestGrowthPolicyAboveOneMiB(t *testing.T) {
	b := New()
	const oneMiB = 1 << 20
	b.Set(make([]byte, oneMiB+10))
	if b.Cap() != oneMiB+10+oneMiB {
		t.Fatalf("cap = %d, want exactly need+1MiB", b.Cap())
	}
}

func TestAppendGrows(t *testing.T) {
	b := New()
	b.Set([]byte("abc"))
	b.Append([]byte("def"))
	if string(b.Bytes()) != "abcdef" {
		t.Fatalf("got %q", b.Bytes())
	}
}

func TestInvariantLenLEQCap(t *testing.T) {
	b := New()
	for _, n := range []int{0, 1, 63, 64, 1000, 1 << 20, (1 << 20) + 5} {
		b.Set(make([]byte, n))
		if b.Len() > b.Cap() {
			t.Fatalf("n=%d: usedLen %d > capacity %d", n, b.Len(), b.Cap())
		}
	}
}

package values

import (
	"testing"

	"github.com/dreamware/nimbuskv/internal/bytestr"
)

func str(s string) bytestr.Str { return bytestr.FromString(s) }

func TestStringGetSetAppend(t *testing.T) {
	s := NewString([]byte("hello"))
	if s.Get().String() != "hello" {
		t.Fatalf("got %q", s.Get().String())
	}
	n := s.Append([]byte(" world"))
	if n != 11 || s.Get().String() != "hello world" {
		t.Fatalf("append: got %q, len %d", s.Get().String(), n)
	}
	s.Set([]byte("reset"))
	if s.Get().String() != "reset" {
		t.Fatalf("got %q", s.Get().String())
	}
	if s.ExpireAt() != NoExpiry {
		t.Fatal("new string should have no expiry")
	}
}

func TestListPushPopRange(t *testing.T) {
	l := NewList()
	l.RPush(str("b"), str("c"))
	l.LPush(str("a"))
	if l.Len() != 3 {
		t.Fatalf("len = %d", l.Len())
	}

	got := l.LRange(0, -1)
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if got[i].String() != w {
			t.Fatalf("index %d: got %s want %s", i, got[i].String(), w)
		}
	}

	v, ok := l.LPop()
	if !ok || v.String() != "a" {
		t.Fatalf("lpop: got %v %v", v, ok)
	}
	v, ok = l.RPop()
	if !ok || v.String() != "c" {
		t.Fatalf("rpop: got %v %v", v, ok)
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}
}

func TestListNegativeRange(t *testing.T) {
	l := NewList()
	l.RPush(str("a"), str("b"), str("c"), str("d"))

	got := l.LRange(-2, -1)
	if len(got) != 2 || got[0].String() != "c" || got[1].String() != "d" {
		t.Fatalf("got %+v", got)
	}

	if got := l.LRange(10, 20); got != nil {
		t.Fatalf("out-of-range should be empty, got %+v", got)
	}
}

func TestSetAddRemoveContains(t *testing.T) {
	s := NewSet()
	if !s.Add(str("x")) {
		t.Fatal("first add should report newly added")
	}
	if s.Add(str("x")) {
		t.Fatal("duplicate add should report false")
	}
	if !s.Contains(str("x")) {
		t.Fatal("expected membership")
	}
	if !s.Remove(str("x")) {
		t.Fatal("expected removal to succeed")
	}
	if s.Contains(str("x")) {
		t.Fatal("expected membership gone")
	}
}

func TestHashSetGetRemove(t *testing.T) {
	h := NewHash()
	if h.Set(str("f1"), str("v1")) {
		t.Fatal("first set of a field should report not-existed")
	}
	v, ok := h.Get(str("f1"))
	if !ok || v.String() != "v1" {
		t.Fatalf("got %v %v", v, ok)
	}
	if !h.Set(str("f1"), str("v2")) {
		t.Fatal("overwrite should report existed")
	}
	if !h.Remove(str("f1")) {
		t.Fatal("expected removal")
	}
	if h.Len() != 0 {
		t.Fatalf("len = %d, want 0", h.Len())
	}
}

func TestSortedSetAddRankRange(t *testing.T) {
	z := NewSortedSet()
	z.Add(str("a"), 1)
	z.Add(str("b"), 3)
	z.Add(str("c"), 2)

	rank, ok := z.Rank(str("b"))
	if !ok || rank != 3 {
		t.Fatalf("rank = %d, ok = %v, want 3", rank, ok)
	}

	entries := z.Range(1, 3)
	want := []string{"a", "c", "b"}
	for i, w := range want {
		if entries[i].Member.String() != w {
			t.Fatalf("index %d: got %s want %s", i, entries[i].Member.String(), w)
		}
	}
}

func TestSortedSetScoreUpdateReindexes(t *testing.T) {
	z := NewSortedSet()
	z.Add(str("a"), 5)
	if !z.Add(str("a"), 1) {
		// Add on an existing member with a changed score reports false
		// (not newly added), but must still reindex.
	}
	score, ok := z.Score(str("a"))
	if !ok || score != 1 {
		t.Fatalf("score = %v, ok = %v, want 1", score, ok)
	}
	rank, ok := z.Rank(str("a"))
	if !ok || rank != 1 {
		t.Fatalf("rank = %d, ok = %v, want 1", rank, ok)
	}
}

func TestToCommandsRoundTrip(t *testing.T) {
	h := NewHash()
	h.Set(str("f1"), str("v1"))
	cmds := h.ToCommands(str("myhash"))
	if len(cmds) != 1 || cmds[0][0].String() != "HSET" {
		t.Fatalf("got %+v", cmds)
	}

	empty := NewSet()
	if cmds := empty.ToCommands(str("k")); cmds != nil {
		t.Fatalf("expected nil commands for empty set, got %+v", cmds)
	}
}

package values

import "github.com/dreamware/nimbuskv/internal/bytestr"

// listNode is one element of a List's doubly-linked backing sequence.
type listNode struct {
	val        bytestr.Str
	prev, next *listNode
}

// List is a doubly-linked sequence of byte-strings with O(1) push/pop at
// both ends, per spec §4.4.
type List struct {
	expiry
	head, tail *listNode
	length     int
}

// NewList returns an empty List.
func NewList() *List {
	return &List{expiry: newExpiry()}
}

// LPush prepends values, in the order given, to the front of the list
// (so the last argument ends up closest to the head), and returns the
// new length.
func (l *List) LPush(vals ...bytestr.Str) int {
	for _, v := range vals {
		n := &listNode{val: v, next: l.head}
		if l.head != nil {
			l.head.prev = n
		}
		l.head = n
		if l.tail == nil {
			l.tail = n
		}
		l.length++
	}
	return l.length
}

// RPush appends values, in the order given, to the back of the list, and
// returns the new length.
func (l *List) RPush(vals ...bytestr.Str) int {
	for _, v := range vals {
		n := &listNode{val: v, prev: l.tail}
		if l.tail != nil {
			l.tail.next = n
		}
		l.tail = n
		if l.head == nil {
			l.head = n
		}
		l.length++
	}
	return l.length
}

// LPop removes and returns the front element, reporting whether the
// list was non-empty.
func (l *List) LPop() (bytestr.Str, bool) {
	if l.head == nil {
		return bytestr.Str{}, false
	}
	n := l.head
	l.head = n.next
	if l.head != nil {
		l.head.prev = nil
	} else {
		l.tail = nil
	}
	l.length--
	return n.val, true
}

// RPop removes and returns the back element, reporting whether the list
// was non-empty.
func (l *List) RPop() (bytestr.Str, bool) {
	if l.tail == nil {
		return bytestr.Str{}, false
	}
	n := l.tail
	l.tail = n.prev
	if l.tail != nil {
		l.tail.next = nil
	} else {
		l.head = nil
	}
	l.length--
	return n.val, true
}

// Len returns the number of elements in the list.
func (l *List) Len() int { return l.length }

// normalizeIndex resolves a possibly-negative index (-1 = last element)
// against the list's current length, clamping to [0, length] for a
// range bound.
func (l *List) normalizeIndex(idx int) int {
	if idx < 0 {
		idx = l.length + idx
	}
	if idx < 0 {
		idx = 0
	}
	if idx > l.length {
		idx = l.length
	}
	return idx
}

// LRange returns elements from index start to stop inclusive, supporting
// negative indices where -1 refers to the last element.
func (l *List) LRange(start, stop int) []bytestr.Str {
	lo := l.normalizeIndex(start)
	hi := l.normalizeIndex(stop) + 1
	if hi > l.length {
		hi = l.length
	}
	if lo >= hi {
		return nil
	}

	out := make([]bytestr.Str, 0, hi-lo)
	n := l.head
	for i := 0; i < lo && n != nil; i++ {
		n = n.next
	}
	for i := lo; i < hi && n != nil; i++ {
		out = append(out, n.val)
		n = n.next
	}
	return out
}

func (l *List) Kind() Kind { return KindList }

func (l *List) ToCommands(key bytestr.Str) [][]bytestr.Str {
	if l.length == 0 {
		return nil
	}
	cmd := make([]bytestr.Str, 0, l.length+2)
	cmd = append(cmd, bytestr.FromString("RPUSH"), key)
	for n := l.head; n != nil; n = n.next {
		cmd = append(cmd, n.val)
	}
	return [][]bytestr.Str{cmd}
}

package values

import (
	"github.com/dreamware/nimbuskv/internal/bytestr"
	"github.com/dreamware/nimbuskv/internal/dynbuf"
)

// String is a mutable byte string backed by a dynbuf.Buf, per spec §3's
// "Dynamic string and optional cached byte-string view." The cached view
// is invalidated (cleared) on every mutation and recomputed lazily on
// the next Get.
type String struct {
	expiry
	buf    *dynbuf.Buf
	cached bytestr.Str
	hasVal bool
}

// NewString returns a String initialized to b's contents.
func NewString(b []byte) *String {
	s := &String{expiry: newExpiry(), buf: dynbuf.New()}
	s.buf.Set(b)
	return s
}

// Get returns the current contents as a Str, computing and caching the
// byte-string view if it isn't already cached.
func (s *String) Get() bytestr.Str {
	if !s.hasVal {
		s.cached = bytestr.FromBytesCopy(s.buf.Bytes())
		s.hasVal = true
	}
	return s.cached
}

// Set replaces the contents with a copy of b.
func (s *String) Set(b []byte) {
	s.buf.Set(b)
	s.hasVal = false
}

// Append appends b to the contents and returns the new total length.
func (s *String) Append(b []byte) int {
	s.buf.Append(b)
	s.hasVal = false
	return s.buf.Len()
}

// Len returns the number of bytes currently stored.
func (s *String) Len() int { return s.buf.Len() }

func (s *String) Kind() Kind { return KindString }

func (s *String) ToCommands(key bytestr.Str) [][]bytestr.Str {
	return [][]bytestr.Str{{bytestr.FromString("SET"), key, s.Get()}}
}

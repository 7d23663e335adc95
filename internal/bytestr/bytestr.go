package bytestr

import (
	"github.com/cespare/xxhash/v2"
)

// Str is an immutable, owned byte sequence with a precomputed hash.
//
// Equality and ordering are always lexicographic on the underlying bytes.
// The zero Str (empty slice, hash of the empty input) is valid and
// compares equal to any other empty Str.
type Str struct {
	b    []byte
	hash uint64
}

// FromBytesCopy returns a Str holding a defensive copy of b. The caller
// retains ownership of b and may mutate it after this call returns.
func FromBytesCopy(b []byte) Str {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Str{b: cp, hash: xxhash.Sum64(cp)}
}

// FromBytesTrusted returns a Str that takes ownership of b without
// copying. The caller must not mutate b after this call; doing so
// violates Str's immutability invariant.
func FromBytesTrusted(b []byte) Str {
	return Str{b: b, hash: xxhash.Sum64(b)}
}

// FromString returns a Str holding a copy of s's bytes.
func FromString(s string) Str {
	return FromBytesCopy([]byte(s))
}

// Len returns the number of bytes in s.
func (s Str) Len() int { return len(s.b) }

// IsZero reports whether s is the empty Str.
func (s Str) IsZero() bool { return len(s.b) == 0 }

// GetBytesCopy returns a defensive copy of s's bytes, safe for the caller
// to mutate.
func (s Str) GetBytesCopy() []byte {
	cp := make([]byte, len(s.b))
	copy(cp, s.b)
	return cp
}

// GetBytesView returns a read-only view of s's bytes. The caller MUST NOT
// mutate the returned slice; doing so corrupts every Str sharing this
// backing array, including interned ones.
func (s Str) GetBytesView() []byte { return s.b }

// String returns a string view of s's bytes. Like GetBytesView, this is a
// lazily-computed (on access) textual view; Go's string/[]byte conversion
// here copies, so unlike GetBytesView the result is safe to hold onto
// independent of s's lifetime.
func (s Str) String() string { return string(s.b) }

// emptyHash is the hash of the empty input, reported for the zero Str.
var emptyHash = xxhash.Sum64(nil)

// Hash returns the hash computed once at construction.
func (s Str) Hash() uint64 {
	if len(s.b) == 0 && s.hash == 0 {
		return emptyHash
	}
	return s.hash
}

// Equals reports whether s and o hold byte-identical content.
func (s Str) Equals(o Str) bool {
	if s.Hash() != o.Hash() || len(s.b) != len(o.b) {
		return false
	}
	for i := range s.b {
		if s.b[i] != o.b[i] {
			return false
		}
	}
	return true
}

// EqualsIgnoreCaseASCII reports whether s and o are equal once ASCII
// letters are case-folded. Bytes outside [A-Z]/[a-z] must match
// byte-for-byte, including any non-ASCII bytes, which are never folded.
func (s Str) EqualsIgnoreCaseASCII(o Str) bool {
	if len(s.b) != len(o.b) {
		return false
	}
	for i := range s.b {
		if foldASCII(s.b[i]) != foldASCII(o.b[i]) {
			return false
		}
	}
	return true
}

func foldASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// CompareLex returns -1, 0, or 1 as s is lexicographically less than,
// equal to, or greater than o.
func (s Str) CompareLex(o Str) int {
	n := len(s.b)
	if len(o.b) < n {
		n = len(o.b)
	}
	for i := 0; i < n; i++ {
		if s.b[i] != o.b[i] {
			if s.b[i] < o.b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(s.b) < len(o.b):
		return -1
	case len(s.b) > len(o.b):
		return 1
	default:
		return 0
	}
}

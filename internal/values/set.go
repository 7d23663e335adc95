package values

import (
	"github.com/dreamware/nimbuskv/internal/bytestr"
	"github.com/dreamware/nimbuskv/internal/dict"
)

// Set is an unordered collection of distinct byte-strings, backed by a
// Dict from member to an empty struct, per spec §3.
type Set struct {
	expiry
	members *dict.Dict[struct{}]
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{expiry: newExpiry(), members: dict.New[struct{}]()}
}

// Add inserts member, reporting whether it was newly added (false if
// already present).
func (s *Set) Add(member bytestr.Str) bool {
	_, existed := s.members.Put(member, struct{}{})
	return !existed
}

// Remove deletes member, reporting whether it was present.
func (s *Set) Remove(member bytestr.Str) bool {
	_, existed := s.members.Remove(member)
	return existed
}

// Contains reports whether member is in the set.
func (s *Set) Contains(member bytestr.Str) bool {
	return s.members.Contains(member)
}

// Len returns the number of members.
func (s *Set) Len() int { return s.members.Size() }

// Members returns every member in unspecified order.
func (s *Set) Members() []bytestr.Str {
	out := make([]bytestr.Str, 0, s.members.Size())
	for k := range s.members.Keys() {
		out = append(out, k)
	}
	return out
}

func (s *Set) Kind() Kind { return KindSet }

func (s *Set) ToCommands(key bytestr.Str) [][]bytestr.Str {
	if s.members.Size() == 0 {
		return nil
	}
	cmd := make([]bytestr.Str, 0, s.members.Size()+2)
	cmd = append(cmd, bytestr.FromString("SADD"), key)
	for k := range s.members.Keys() {
		cmd = append(cmd, k)
	}
	return [][]bytestr.Str{cmd}
}

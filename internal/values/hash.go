package values

import (
	"github.com/dreamware/nimbuskv/internal/bytestr"
	"github.com/dreamware/nimbuskv/internal/dict"
)

// Hash is a field/value map of byte-strings, per spec §3.
type Hash struct {
	expiry
	fields *dict.Dict[bytestr.Str]
}

// NewHash returns an empty Hash.
func NewHash() *Hash {
	return &Hash{expiry: newExpiry(), fields: dict.New[bytestr.Str]()}
}

// Set assigns field = value, returning whether the field already existed
// (and thus was overwritten rather than created).
func (h *Hash) Set(field, value bytestr.Str) bool {
	_, existed := h.fields.Put(field, value)
	return existed
}

// Get returns field's value, reporting whether it is present.
func (h *Hash) Get(field bytestr.Str) (bytestr.Str, bool) {
	return h.fields.Get(field)
}

// Remove deletes field, reporting whether it was present.
func (h *Hash) Remove(field bytestr.Str) bool {
	_, existed := h.fields.Remove(field)
	return existed
}

// Len returns the number of fields.
func (h *Hash) Len() int { return h.fields.Size() }

// Fields returns every (field, value) pair in unspecified order, keyed
// by the field's string form since bytestr.Str's []byte field makes it
// an invalid map key type.
func (h *Hash) Fields() map[string]bytestr.Str {
	out := make(map[string]bytestr.Str, h.fields.Size())
	for k, v := range h.fields.Entries() {
		out[k.String()] = v
	}
	return out
}

func (h *Hash) Kind() Kind { return KindHash }

func (h *Hash) ToCommands(key bytestr.Str) [][]bytestr.Str {
	if h.fields.Size() == 0 {
		return nil
	}
	cmd := make([]bytestr.Str, 0, h.fields.Size()*2+2)
	cmd = append(cmd, bytestr.FromString("HSET"), key)
	for k, v := range h.fields.Entries() {
		cmd = append(cmd, k, v)
	}
	return [][]bytestr.Str{cmd}
}

package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/nimbuskv/internal/bytestr"
	"github.com/dreamware/nimbuskv/internal/keyspace"
	"github.com/dreamware/nimbuskv/internal/resp"
	"github.com/dreamware/nimbuskv/internal/values"
)

func bs(s string) bytestr.Str { return bytestr.FromString(s) }

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func stringValue(t *testing.T, v values.Value) string {
	t.Helper()
	s, ok := v.(*values.String)
	require.True(t, ok, "expected *values.String, got %T", v)
	return s.Get().String()
}

func encodeArgs(args ...string) [][]byte {
	b := make([][]byte, len(args))
	for i, a := range args {
		b[i] = []byte(a)
	}
	return b
}

func encodeSet(key, val string) []byte {
	return resp.Encode(encodeArgs("SET", key, val))
}

func TestReplayApplierHandlesFullVocabulary(t *testing.T) {
	ks := keyspace.New(2)
	a := newReplayApplier(ks)

	require.NoError(t, a.Apply(encodeArgs("SELECT", "1")))
	require.NoError(t, a.Apply(encodeArgs("SET", "s", "hello")))
	require.NoError(t, a.Apply(encodeArgs("RPUSH", "l", "a", "b", "c")))
	require.NoError(t, a.Apply(encodeArgs("SADD", "st", "x", "y")))
	require.NoError(t, a.Apply(encodeArgs("HSET", "h", "f1", "v1", "f2", "v2")))
	require.NoError(t, a.Apply(encodeArgs("ZADD", "z", "1", "m1", "2", "m2")))
	require.NoError(t, a.Apply(encodeArgs("PEXPIREAT", "s", "99999999999999")))

	db, err := ks.DB(1)
	require.NoError(t, err)

	sv, ok := db.Get(bs("s"))
	require.True(t, ok)
	assert.Equal(t, "hello", stringValue(t, sv))
	assert.Equal(t, int64(99999999999999), sv.ExpireAt())

	lv, ok := db.Get(bs("l"))
	require.True(t, ok)
	l, ok := lv.(*values.List)
	require.True(t, ok)
	assert.Equal(t, 3, l.Len())

	stv, ok := db.Get(bs("st"))
	require.True(t, ok)
	s, ok := stv.(*values.Set)
	require.True(t, ok)
	assert.Equal(t, 2, s.Len())

	hv, ok := db.Get(bs("h"))
	require.True(t, ok)
	h, ok := hv.(*values.Hash)
	require.True(t, ok)
	assert.Equal(t, 2, h.Len())

	zv, ok := db.Get(bs("z"))
	require.True(t, ok)
	z, ok := zv.(*values.SortedSet)
	require.True(t, ok)
	assert.Equal(t, 2, z.Len())
}

func TestReplayApplierRejectsUnknownCommand(t *testing.T) {
	ks := keyspace.New(1)
	a := newReplayApplier(ks)

	err := a.Apply(encodeArgs("GET", "k"))
	require.Error(t, err)
}

func TestReplayApplierPexpireatOnMissingKeyIsNoop(t *testing.T) {
	ks := keyspace.New(1)
	a := newReplayApplier(ks)

	require.NoError(t, a.Apply(encodeArgs("PEXPIREAT", "missing", "123")))
}

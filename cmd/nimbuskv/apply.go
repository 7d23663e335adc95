package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dreamware/nimbuskv/internal/bytestr"
	"github.com/dreamware/nimbuskv/internal/keyspace"
	"github.com/dreamware/nimbuskv/internal/values"
)

// replayApplier interprets exactly the reconstruction vocabulary
// internal/values.Value.ToCommands and internal/aof's rewrite emit:
// SELECT, SET, RPUSH, SADD, HSET, ZADD, PEXPIREAT. It is not a general
// command dispatcher — individual command implementations are out of
// scope — it only closes the loop between "a value serializes itself to
// these commands" and "AOF recovery/replica streaming need something to
// apply them to."
type replayApplier struct {
	ks      *keyspace.Keyspace
	current int
}

func newReplayApplier(ks *keyspace.Keyspace) *replayApplier {
	return &replayApplier{ks: ks}
}

func (a *replayApplier) Apply(args [][]byte) error {
	if len(args) == 0 {
		return fmt.Errorf("nimbuskv: empty command")
	}
	name := strings.ToUpper(string(args[0]))

	switch name {
	case "SELECT":
		if len(args) != 2 {
			return fmt.Errorf("nimbuskv: SELECT wants 1 argument")
		}
		idx, err := strconv.Atoi(string(args[1]))
		if err != nil {
			return fmt.Errorf("nimbuskv: SELECT bad index: %w", err)
		}
		a.current = idx
		return nil

	case "SET":
		if len(args) != 3 {
			return fmt.Errorf("nimbuskv: SET wants 2 arguments")
		}
		a.db().Put(bytestr.FromBytesTrusted(args[1]), values.NewString(args[2]))
		return nil

	case "RPUSH":
		if len(args) < 3 {
			return fmt.Errorf("nimbuskv: RPUSH wants at least 2 arguments")
		}
		l := values.NewList()
		l.RPush(toStrs(args[2:])...)
		a.db().Put(bytestr.FromBytesTrusted(args[1]), l)
		return nil

	case "SADD":
		if len(args) < 3 {
			return fmt.Errorf("nimbuskv: SADD wants at least 2 arguments")
		}
		s := values.NewSet()
		for _, m := range args[2:] {
			s.Add(bytestr.FromBytesTrusted(m))
		}
		a.db().Put(bytestr.FromBytesTrusted(args[1]), s)
		return nil

	case "HSET":
		if len(args) < 4 || len(args)%2 != 0 {
			return fmt.Errorf("nimbuskv: HSET wants key plus field/value pairs")
		}
		h := values.NewHash()
		for i := 2; i+1 < len(args); i += 2 {
			h.Set(bytestr.FromBytesTrusted(args[i]), bytestr.FromBytesTrusted(args[i+1]))
		}
		a.db().Put(bytestr.FromBytesTrusted(args[1]), h)
		return nil

	case "ZADD":
		if len(args) < 4 || len(args)%2 != 0 {
			return fmt.Errorf("nimbuskv: ZADD wants key plus score/member pairs")
		}
		z := values.NewSortedSet()
		for i := 2; i+1 < len(args); i += 2 {
			score, err := strconv.ParseFloat(string(args[i]), 64)
			if err != nil {
				return fmt.Errorf("nimbuskv: ZADD bad score: %w", err)
			}
			z.Add(bytestr.FromBytesTrusted(args[i+1]), score)
		}
		a.db().Put(bytestr.FromBytesTrusted(args[1]), z)
		return nil

	case "PEXPIREAT":
		if len(args) != 3 {
			return fmt.Errorf("nimbuskv: PEXPIREAT wants 2 arguments")
		}
		millis, err := strconv.ParseInt(string(args[2]), 10, 64)
		if err != nil {
			return fmt.Errorf("nimbuskv: PEXPIREAT bad timestamp: %w", err)
		}
		key := bytestr.FromBytesTrusted(args[1])
		v, ok := a.db().Get(key)
		if !ok {
			return nil
		}
		v.SetExpireAt(millis)
		return nil

	case "PING", "REPLCONF":
		return nil

	default:
		return fmt.Errorf("nimbuskv: unsupported replay command %q", name)
	}
}

func (a *replayApplier) db() *keyspace.Database {
	db, err := a.ks.DB(a.current)
	if err != nil {
		// current is always an index this process itself selected via a
		// prior SELECT, so an out-of-range index means the log or stream
		// names a database this keyspace wasn't sized for.
		panic(fmt.Sprintf("nimbuskv: replay selected out-of-range database %d: %v", a.current, err))
	}
	return db
}

func toStrs(raw [][]byte) []bytestr.Str {
	out := make([]bytestr.Str, len(raw))
	for i, b := range raw {
		out[i] = bytestr.FromBytesTrusted(b)
	}
	return out
}

package keyspace

import (
	"fmt"
	"iter"
	"time"

	"github.com/dreamware/nimbuskv/internal/bytestr"
	"github.com/dreamware/nimbuskv/internal/dict"
	"github.com/dreamware/nimbuskv/internal/values"
)

// Clock returns the current time as Unix milliseconds. Production code
// uses the default (wall-clock) constructor; tests inject a fixed or
// stepped Clock to exercise expiry deterministically.
type Clock func() int64

func wallClock() int64 { return time.Now().UnixMilli() }

// Stats tracks per-database operation counts, mirroring torua's
// OperationStats shape for introspection (spec's supplemented
// DBSIZE-equivalent surface).
type Stats struct {
	Gets    uint64
	Puts    uint64
	Deletes uint64
	Expired uint64
}

// Database is one numbered database within a Keyspace: a key→value dict
// plus lazy TTL expiry.
type Database struct {
	data  *dict.Dict[values.Value]
	clock Clock
	stats Stats
}

func newDatabase(clock Clock) *Database {
	return &Database{data: dict.New[values.Value](), clock: clock}
}

// Get returns key's value, lazily deleting and reporting a miss if it
// has expired.
func (db *Database) Get(key bytestr.Str) (values.Value, bool) {
	db.stats.Gets++
	v, ok := db.data.Get(key)
	if !ok {
		return nil, false
	}
	if v.IsExpired(db.clock()) {
		db.data.Remove(key)
		db.stats.Expired++
		return nil, false
	}
	return v, true
}

// Contains reports whether key is present and unexpired, lazily deleting
// it if expired.
func (db *Database) Contains(key bytestr.Str) bool {
	_, ok := db.Get(key)
	return ok
}

// Put stores value under key, replacing any prior value regardless of
// its expiry state.
func (db *Database) Put(key bytestr.Str, value values.Value) {
	db.stats.Puts++
	db.data.Put(key, value)
}

// Remove deletes key, reporting whether it was present (expired keys
// still count as "was present" here; callers wanting expiry-aware removal
// should Get first).
func (db *Database) Remove(key bytestr.Str) bool {
	_, existed := db.data.Remove(key)
	if existed {
		db.stats.Deletes++
	}
	return existed
}

// Size returns the number of live, unexpired keys. This walks the
// keyspace (O(n)) rather than returning the dict's raw count, since
// expired-but-not-yet-lazily-deleted keys must not be counted.
func (db *Database) Size() int {
	now := db.clock()
	n := 0
	for _, v := range db.data.Entries() {
		if !v.IsExpired(now) {
			n++
		}
	}
	return n
}

// Flush removes every key.
func (db *Database) Flush() {
	db.data = dict.New[values.Value]()
}

// Entries yields every live (key, value) pair, eagerly skipping expired
// keys without deleting them. Used by snapshot and replication walks,
// per spec §3's "eagerly skipped by snapshot/replication."
func (db *Database) Entries() iter.Seq2[bytestr.Str, values.Value] {
	return func(yield func(bytestr.Str, values.Value) bool) {
		now := db.clock()
		for k, v := range db.data.Entries() {
			if v.IsExpired(now) {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// Stats returns a snapshot of this database's operation counters.
func (db *Database) Stats() Stats { return db.stats }

// Snapshot is a logical, point-in-time freeze of a Database's keys,
// suitable for a consistent walk that does not block concurrent writers
// (spec §4.6's bgsave requirement). Expired-as-of-creation keys are
// skipped eagerly, matching Entries.
type Snapshot struct {
	dict *dict.Snapshot[values.Value]
	now  int64
}

// CreateSnapshot returns a Snapshot of db at this call's linearization
// point. The caller must call FinishSnapshot when done to let the
// underlying dict reclaim superseded chains.
func (db *Database) CreateSnapshot() *Snapshot {
	return &Snapshot{dict: db.data.CreateSnapshot(), now: db.clock()}
}

// FinishSnapshot releases s.
func (db *Database) FinishSnapshot(s *Snapshot) {
	db.data.FinishSnapshot(s.dict)
}

// Entries yields every (key, value) pair live at snapshot-creation time,
// skipping those already expired as of then.
func (s *Snapshot) Entries() iter.Seq2[bytestr.Str, values.Value] {
	return func(yield func(bytestr.Str, values.Value) bool) {
		for k, v := range s.dict.Entries() {
			if v.IsExpired(s.now) {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// Len returns the raw entry count at snapshot-creation time, including
// any not-yet-lazily-deleted expired entries.
func (s *Snapshot) Len() int { return s.dict.Len() }

// Keyspace is the fixed array of numbered databases spec §3 describes.
type Keyspace struct {
	dbs []*Database
}

// New returns a Keyspace with n databases (spec default N=16), using the
// wall clock for TTL checks.
func New(n int) *Keyspace {
	return NewWithClock(n, wallClock)
}

// NewWithClock is New with an injectable clock, for deterministic TTL
// tests.
func NewWithClock(n int, clock Clock) *Keyspace {
	dbs := make([]*Database, n)
	for i := range dbs {
		dbs[i] = newDatabase(clock)
	}
	return &Keyspace{dbs: dbs}
}

// NumDatabases returns N, the number of numbered databases.
func (k *Keyspace) NumDatabases() int { return len(k.dbs) }

// DB returns the database at the given index, or an error if the index
// is out of [0, NumDatabases()).
func (k *Keyspace) DB(index int) (*Database, error) {
	if index < 0 || index >= len(k.dbs) {
		return nil, fmt.Errorf("keyspace: database index %d out of range [0, %d)", index, len(k.dbs))
	}
	return k.dbs[index], nil
}

// FlushDB clears the database at index.
func (k *Keyspace) FlushDB(index int) error {
	db, err := k.DB(index)
	if err != nil {
		return err
	}
	db.Flush()
	return nil
}

// FlushAll clears every database.
func (k *Keyspace) FlushAll() {
	for _, db := range k.dbs {
		db.Flush()
	}
}

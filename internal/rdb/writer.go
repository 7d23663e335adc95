package rdb

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/dreamware/nimbuskv/internal/bytestr"
	"github.com/dreamware/nimbuskv/internal/keyspace"
	"github.com/dreamware/nimbuskv/internal/values"
)

// ErrSaveInProgress is returned by Save/BGSave when another save against
// the same file is already running, per spec §4.6's "non-reentrant
// guard."
var ErrSaveInProgress = fmt.Errorf("rdb: a save is already in progress for this file")

// Save writes a full snapshot of ks to path, atomically: it writes to a
// temp file in the same directory and renames over path only after a
// successful fsync. It reads each database through
// keyspace.Database.CreateSnapshot, so it never blocks concurrent
// command execution (spec §4.6).
//
// At most one Save may run against a given path at a time; a concurrent
// call returns ErrSaveInProgress.
func Save(ks *keyspace.Keyspace, path string) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("rdb: acquiring save guard: %w", err)
	}
	if !locked {
		return ErrSaveInProgress
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("rdb: creating temp file: %w", err)
	}
	defer os.Remove(tmp)

	if err := writeSnapshot(f, ks); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("rdb: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("rdb: closing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rdb: renaming into place: %w", err)
	}
	return nil
}

func writeSnapshot(f *os.File, ks *keyspace.Keyspace) error {
	cw := newChecksumWriter(f)

	if _, err := cw.Write([]byte(header)); err != nil {
		return err
	}

	for i := 0; i < ks.NumDatabases(); i++ {
		db, err := ks.DB(i)
		if err != nil {
			return err
		}
		if err := writeDatabase(cw, i, db); err != nil {
			return err
		}
	}

	if err := cw.writeByte(opEOF); err != nil {
		return err
	}

	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], cw.sum.Sum64())
	_, err := f.Write(trailer[:])
	return err
}

func writeDatabase(cw *checksumWriter, index int, db *keyspace.Database) error {
	snap := db.CreateSnapshot()
	defer db.FinishSnapshot(snap)

	headerWritten := false
	for k, v := range snap.Entries() {
		if !headerWritten {
			if err := cw.writeByte(opSelectDB); err != nil {
				return err
			}
			if err := writeLength(cw, index); err != nil {
				return err
			}
			headerWritten = true
		}
		if err := writeEntry(cw, k, v); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(cw *checksumWriter, key bytestr.Str, v values.Value) error {
	wireType, err := wireTypeFor(v)
	if err != nil {
		return err
	}
	if err := cw.writeByte(wireType); err != nil {
		return err
	}
	if err := writeBytes(cw, key.GetBytesView()); err != nil {
		return err
	}

	switch val := v.(type) {
	case *values.String:
		return writeBytes(cw, val.Get().GetBytesView())

	case *values.List:
		items := val.LRange(0, -1)
		if err := writeLength(cw, len(items)); err != nil {
			return err
		}
		for _, it := range items {
			if err := writeBytes(cw, it.GetBytesView()); err != nil {
				return err
			}
		}
		return nil

	case *values.Set:
		members := val.Members()
		if err := writeLength(cw, len(members)); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeBytes(cw, m.GetBytesView()); err != nil {
				return err
			}
		}
		return nil

	case *values.Hash:
		fields := val.Fields()
		if err := writeLength(cw, len(fields)); err != nil {
			return err
		}
		for f, fv := range fields {
			if err := writeBytes(cw, []byte(f)); err != nil {
				return err
			}
			if err := writeBytes(cw, fv.GetBytesView()); err != nil {
				return err
			}
		}
		return nil

	case *values.SortedSet:
		n := val.Len()
		if err := writeLength(cw, n); err != nil {
			return err
		}
		for _, e := range val.Range(1, n) {
			if err := writeBytes(cw, e.Member.GetBytesView()); err != nil {
				return err
			}
			var scoreBuf [8]byte
			binary.BigEndian.PutUint64(scoreBuf[:], math.Float64bits(e.Score))
			if _, err := cw.Write(scoreBuf[:]); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("rdb: unknown value type %T", v)
	}
}

func wireTypeFor(v values.Value) (byte, error) {
	switch v.Kind() {
	case values.KindString:
		return wireString, nil
	case values.KindList:
		return wireList, nil
	case values.KindSet:
		return wireSet, nil
	case values.KindHash:
		return wireHash, nil
	case values.KindSortedSet:
		return wireZSet, nil
	default:
		return 0, fmt.Errorf("rdb: unknown value kind %v", v.Kind())
	}
}

// BGSave runs Save in a background goroutine, logging its outcome. It
// returns immediately; callers that need to know when the save finishes
// should not use this entry point.
func BGSave(ks *keyspace.Keyspace, path string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		logger.Info("bgsave starting", zap.String("path", path))
		if err := Save(ks, filepath.Clean(path)); err != nil {
			logger.Error("bgsave failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("bgsave completed", zap.String("path", path))
	}()
}

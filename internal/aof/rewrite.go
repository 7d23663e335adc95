package aof

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"

	"github.com/dreamware/nimbuskv/internal/bytestr"
	"github.com/dreamware/nimbuskv/internal/keyspace"
	"github.com/dreamware/nimbuskv/internal/resp"
	"github.com/dreamware/nimbuskv/internal/values"
)

// ErrRewriteInProgress is returned when Rewrite is called while another
// rewrite against the same log file is already running.
var ErrRewriteInProgress = fmt.Errorf("aof: a rewrite is already in progress")

// Rewrite compacts the command log to the minimal sequence that
// reconstructs ks's current content, using each value's self-serializing
// ToCommands, then atomically swaps it in for the live file (spec §4.7's
// bgrewrite). At most one rewrite runs at a time, guarded by a lock file
// rather than an in-process flag so a crashed process doesn't leave a
// stale guard behind.
//
// Writes accepted while the new log is being built are mirrored into a
// side queue (already wired into Enqueue) and appended to the new file
// before the swap, so nothing written during the rewrite is lost.
func (w *Writer) Rewrite(ks *keyspace.Keyspace) error {
	lock := flock.New(w.path + ".rewrite.lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("aof: acquiring rewrite guard: %w", err)
	}
	if !locked {
		return ErrRewriteInProgress
	}
	defer lock.Unlock()

	side := &[][]byte{}
	w.sideQueueMu.Lock()
	w.sideQueue = side
	w.sideQueueMu.Unlock()

	tmpPath := w.path + ".rewrite.tmp"
	if err := writeCompactedLog(tmpPath, ks); err != nil {
		w.sideQueueMu.Lock()
		w.sideQueue = nil
		w.sideQueueMu.Unlock()
		os.Remove(tmpPath)
		return err
	}

	if err := w.spliceSideQueueAndSwap(tmpPath, side); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// writeCompactedLog writes, for every database in ks, a SELECT command
// (only if it holds at least one live key) followed by each key's
// reconstruction commands and, for keys with a TTL, a trailing PEXPIREAT.
func writeCompactedLog(path string, ks *keyspace.Keyspace) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for i := 0; i < ks.NumDatabases(); i++ {
		db, err := ks.DB(i)
		if err != nil {
			return err
		}
		if err := writeCompactedDatabase(f, i, db); err != nil {
			return err
		}
	}
	return f.Sync()
}

func writeCompactedDatabase(f *os.File, index int, db *keyspace.Database) error {
	snap := db.CreateSnapshot()
	defer db.FinishSnapshot(snap)

	wroteSelect := false
	for key, v := range snap.Entries() {
		if !wroteSelect {
			sel := []bytestr.Str{bytestr.FromString("SELECT"), bytestr.FromString(strconv.Itoa(index))}
			if _, err := f.Write(encodeCommand(sel)); err != nil {
				return err
			}
			wroteSelect = true
		}
		for _, cmd := range v.ToCommands(key) {
			if _, err := f.Write(encodeCommand(cmd)); err != nil {
				return err
			}
		}
		if v.ExpireAt() != values.NoExpiry {
			expireCmd := []bytestr.Str{
				bytestr.FromString("PEXPIREAT"),
				key,
				bytestr.FromString(strconv.FormatInt(v.ExpireAt(), 10)),
			}
			if _, err := f.Write(encodeCommand(expireCmd)); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeCommand(cmd []bytestr.Str) []byte {
	args := make([][]byte, len(cmd))
	for i, a := range cmd {
		args[i] = a.GetBytesView()
	}
	return resp.Encode(args)
}

// spliceSideQueueAndSwap drains side into the temp file (in two passes,
// since writes can still land between building the snapshot and
// disabling the side queue), renames the temp file over the live one,
// and repoints the writer at the new file.
func (w *Writer) spliceSideQueueAndSwap(tmpPath string, side *[][]byte) error {
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		w.sideQueueMu.Lock()
		w.sideQueue = nil
		w.sideQueueMu.Unlock()
		return err
	}

	for pass := 0; pass < 2; pass++ {
		w.sideQueueMu.Lock()
		pending := *side
		*side = nil
		w.sideQueueMu.Unlock()

		for _, b := range pending {
			if _, err := f.Write(b); err != nil {
				f.Close()
				w.sideQueueMu.Lock()
				w.sideQueue = nil
				w.sideQueueMu.Unlock()
				return err
			}
		}
	}

	w.sideQueueMu.Lock()
	w.sideQueue = nil
	w.sideQueueMu.Unlock()

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	w.fileMu.Lock()
	defer w.fileMu.Unlock()

	if err := os.Rename(tmpPath, w.path); err != nil {
		return err
	}

	newFile, err := os.OpenFile(w.path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	info, err := newFile.Stat()
	if err != nil {
		newFile.Close()
		return err
	}

	w.file.Close()
	w.file = newFile
	w.writeOffset = info.Size()
	w.allocatedSize = info.Size()
	return nil
}

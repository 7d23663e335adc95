package aof

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	queueCapacity   = 1000             // default item count (spec §4.7)
	maxPendingBytes = 6 << 20          // 6 MiB
	bypassThreshold = 512 << 10        // 512 KiB
	batchMin        = 16
	batchMax        = 50
	preallocSize    = 4 << 20 // 4 MiB
	growChunk       = 4 << 20
)

// ErrClosed is returned by Enqueue after Close has been called.
var ErrClosed = fmt.Errorf("aof: writer is closed")

// item is one queued, already RESP-encoded command.
type item struct {
	b []byte
}

// Writer is the command log's durable write path: a bounded queue feeding
// a single background goroutine that batches writes into as few syscalls
// as possible, per spec §4.7.
type Writer struct {
	path   string
	file   *os.File
	policy FsyncPolicy
	limiter *rate.Limiter
	logger *zap.Logger

	queue chan item

	pendingMu    sync.Mutex
	pendingCond  *sync.Cond
	pendingBytes int64

	fileMu        sync.Mutex // protects file, writeOffset, allocatedSize across rewrite swap
	writeOffset   int64
	allocatedSize int64

	sideQueueMu sync.Mutex
	sideQueue   *[][]byte // non-nil while a rewrite is capturing concurrent writes

	closeOnce sync.Once
	closeCh   chan struct{}
	doneCh    chan struct{}
}

// Open opens (creating if necessary) the command log at path and starts
// its background writer goroutine.
func Open(path string, policy FsyncPolicy, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("aof: opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := &Writer{
		path:    path,
		file:    f,
		policy:  policy,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
		queue:   make(chan item, queueCapacity),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	w.pendingCond = sync.NewCond(&w.pendingMu)

	// A fresh file has no real tail yet (offset 0) even once
	// preallocated; an existing file's real tail equals its current
	// size, since Close always truncates to the true tail (spec §4.7:
	// "pre-allocation is invisible to readers").
	w.writeOffset = info.Size()
	w.allocatedSize = info.Size()
	if info.Size() == 0 {
		if err := f.Truncate(preallocSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("aof: preallocating %s: %w", path, err)
		}
		w.allocatedSize = preallocSize
	}

	go w.loop()
	return w, nil
}

// Enqueue appends an already RESP-encoded command to the log, blocking
// while doing so would exceed the pending-bytes budget (backpressure),
// per spec §4.7 step 4.
func (w *Writer) Enqueue(encoded []byte) error {
	w.pendingMu.Lock()
	for w.pendingBytes+int64(len(encoded)) > maxPendingBytes {
		select {
		case <-w.closeCh:
			w.pendingMu.Unlock()
			return ErrClosed
		default:
		}
		w.pendingCond.Wait()
	}
	w.pendingBytes += int64(len(encoded))
	w.pendingMu.Unlock()

	w.sideQueueMu.Lock()
	if w.sideQueue != nil {
		cp := make([]byte, len(encoded))
		copy(cp, encoded)
		*w.sideQueue = append(*w.sideQueue, cp)
	}
	w.sideQueueMu.Unlock()

	select {
	case w.queue <- item{b: encoded}:
		return nil
	case <-w.closeCh:
		return ErrClosed
	}
}

func (w *Writer) releasePending(n int64) {
	w.pendingMu.Lock()
	w.pendingBytes -= n
	w.pendingMu.Unlock()
	w.pendingCond.Broadcast()
}

// loop is the single background writer goroutine: it drains the queue in
// batches, writes each batch (or bypasses batching for an oversized
// single command) with one syscall, and applies the fsync policy.
func (w *Writer) loop() {
	defer close(w.doneCh)

	for {
		first, open := <-w.queue
		if !open {
			return
		}
		batch := make([]item, 0, batchMin)
		batch = append(batch, first)
		closed := false
	drain:
		for len(batch) < batchMax {
			select {
			case next, open := <-w.queue:
				if !open {
					closed = true
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		w.writeBatch(batch)
		if closed {
			return
		}
	}
}

func (w *Writer) writeBatch(batch []item) {
	var total int64
	var buf []byte
	flushConsolidated := func() {
		if len(buf) == 0 {
			return
		}
		w.appendToFile(buf)
		buf = nil
	}

	for _, it := range batch {
		total += int64(len(it.b))
		if len(it.b) > bypassThreshold {
			flushConsolidated()
			w.appendToFile(it.b)
			continue
		}
		buf = append(buf, it.b...)
	}
	flushConsolidated()

	w.maybeSync()
	w.releasePending(total)
}

func (w *Writer) appendToFile(b []byte) {
	w.fileMu.Lock()
	defer w.fileMu.Unlock()

	need := w.writeOffset + int64(len(b))
	if need > w.allocatedSize {
		growTo := w.allocatedSize
		for growTo < need {
			growTo += growChunk
		}
		if err := w.file.Truncate(growTo); err != nil {
			w.logger.Error("aof: growing file failed", zap.Error(err))
			return
		}
		w.allocatedSize = growTo
	}

	if _, err := w.file.WriteAt(b, w.writeOffset); err != nil {
		w.logger.Error("aof: write failed", zap.Error(err))
		return
	}
	w.writeOffset += int64(len(b))
}

func (w *Writer) maybeSync() {
	switch w.policy {
	case FsyncAlways:
		w.fileMu.Lock()
		w.file.Sync()
		w.fileMu.Unlock()
	case FsyncEverySec:
		if w.limiter.Allow() {
			w.fileMu.Lock()
			w.file.Sync()
			w.fileMu.Unlock()
		}
	case FsyncNo:
	}
}

// Close stops accepting new commands, flushes every queued command, syncs
// and truncates the file to its real tail, and closes the file handle.
func (w *Writer) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		close(w.queue)
		w.pendingCond.Broadcast()
		<-w.doneCh

		w.fileMu.Lock()
		defer w.fileMu.Unlock()
		if syncErr := w.file.Sync(); syncErr != nil {
			err = syncErr
		}
		if truncErr := w.file.Truncate(w.writeOffset); truncErr != nil && err == nil {
			err = truncErr
		}
		if closeErr := w.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

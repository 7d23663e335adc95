// Package replica implements the replica side of replication (spec
// §4.9, component C10): the DISCONNECTED→CONNECTING→SYNCING/STREAMING
// state machine, the PSYNC handshake, heartbeat, and reconnect with a
// saved offset.
//
// The reconnect/heartbeat loop's shape — a context-cancellable
// background goroutine with a ticker and a "3 consecutive failures
// flips state" rule — is adapted from torua's coordinator.HealthMonitor,
// with PING/pong send failures standing in for failed HTTP health
// checks.
package replica

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dreamware/nimbuskv/internal/resp"
)

const (
	handshakeTimeout     = 30 * time.Second
	heartbeatSendTimeout = 5 * time.Second
	defaultHeartbeat     = time.Second
	heartbeatFailLimit   = 3
)

// Conn is the minimal connection surface Replica needs: a
// byte-oriented, closable duplex stream. net.Conn satisfies it; tests
// can use net.Pipe or any io.ReadWriteCloser.
type Conn interface {
	io.ReadWriteCloser
}

// deadliner is implemented by net.Conn; Replica uses it opportunistically
// to bound the handshake and heartbeat sends, per spec §5's timeouts.
type deadliner interface {
	SetDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// Dialer opens a new connection to the primary.
type Dialer func(ctx context.Context) (Conn, error)

// Applier re-executes one decoded command array against the local
// keyspace.
type Applier func(args [][]byte) error

// SnapshotLoader loads a full-resync snapshot blob into the local
// keyspace (cmd/nimbuskv writes the blob to a temporary file and calls
// rdb.Load on that path).
type SnapshotLoader func(data []byte) error

// Stats is a point-in-time snapshot of this replica's link state,
// mirroring the teacher's ShardStats/OperationStats introspection shape.
type Stats struct {
	CommandsApplied uint64
	BytesApplied    int64
	LastAckOffset   int64
	ConnectedSince  time.Time
}

// Replica drives one replication link to a primary.
type Replica struct {
	mu sync.Mutex

	state        State
	lastMasterID string
	lastOffset   int64 // -1 means "no prior offset", per spec's PSYNC ? -1

	offset int64
	stats  Stats

	dial         Dialer
	apply        Applier
	loadSnapshot SnapshotLoader

	heartbeatInterval time.Duration
	backoff           backoff.BackOff
	logger            *zap.Logger
}

// New returns a Replica in the Disconnected state with no prior offset.
func New(dial Dialer, apply Applier, loadSnapshot SnapshotLoader, logger *zap.Logger) *Replica {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replica{
		state:             Disconnected,
		lastOffset:        -1,
		dial:              dial,
		apply:             apply,
		loadSnapshot:      loadSnapshot,
		heartbeatInterval: defaultHeartbeat,
		backoff:           backoff.NewExponentialBackOff(),
		logger:            logger,
	}
}

// State returns the current lifecycle state.
func (r *Replica) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns a copy of the current link statistics.
func (r *Replica) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Replica) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run connects, handshakes, streams, and reconnects with backoff until
// ctx is cancelled. Each failed or dropped connection re-enters
// Disconnected before the next attempt, per spec §4.9's "any →
// DISCONNECTED: on close."
func (r *Replica) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.setState(Disconnected)
			return ctx.Err()
		default:
		}

		err := r.connectOnce(ctx)
		r.setState(Disconnected)
		if err != nil {
			r.logger.Warn("replica: connection attempt ended", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff.NextBackOff()):
		}
	}
}

// connectOnce performs one full connection lifecycle: dial, handshake,
// stream until the link breaks or ctx is cancelled. Any returned error
// means the caller should reconnect.
func (r *Replica) connectOnce(ctx context.Context) error {
	r.setState(Connecting)
	conn, err := r.dial(ctx)
	if err != nil {
		return errors.Wrap(err, "replica: dial failed")
	}
	defer conn.Close()

	if dl, ok := conn.(deadliner); ok {
		dl.SetDeadline(time.Now().Add(handshakeTimeout))
		defer dl.SetDeadline(time.Time{})
	}

	var writeMu sync.Mutex
	dec := resp.NewDecoder(conn)

	r.mu.Lock()
	reqID := r.lastMasterID
	if reqID == "" {
		reqID = "?"
	}
	reqOffset := r.lastOffset
	r.mu.Unlock()

	offsetStr := strconv.FormatInt(reqOffset, 10)
	psync := resp.Encode([][]byte{[]byte("PSYNC"), []byte(reqID), []byte(offsetStr)})
	if _, err := writeLocked(&writeMu, conn, psync); err != nil {
		return errors.Wrap(err, "replica: sending PSYNC failed")
	}

	line, err := dec.ReadLine()
	if err != nil {
		r.setState(Err)
		return errors.Wrap(err, "replica: reading PSYNC reply failed")
	}

	switch {
	case strings.HasPrefix(line, "+FULLRESYNC"):
		if err := r.handleFullResync(line, dec); err != nil {
			r.setState(Err)
			return err
		}
	case strings.HasPrefix(line, "+CONTINUE"):
		if err := r.handleContinue(dec); err != nil {
			r.setState(Err)
			return err
		}
	default:
		r.setState(Err)
		return errors.Errorf("replica: unexpected PSYNC reply %q", line)
	}

	r.setState(Streaming)
	r.mu.Lock()
	r.stats.ConnectedSince = time.Now()
	r.mu.Unlock()
	if err := r.sendAck(&writeMu, conn); err != nil {
		r.logger.Warn("replica: initial ACK failed", zap.Error(err))
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	go r.heartbeatLoop(hbCtx, conn, &writeMu, func() { conn.Close() })

	return r.streamLoop(ctx, dec, conn, &writeMu)
}

func (r *Replica) handleFullResync(line string, dec *resp.Decoder) error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return errors.Errorf("replica: malformed FULLRESYNC line %q", line)
	}
	masterID := fields[1]
	off, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return errors.Wrapf(err, "replica: bad FULLRESYNC offset in %q", line)
	}

	r.setState(Syncing)
	data, ok, err := dec.ReadBulkPayload()
	if err != nil {
		return errors.Wrap(err, "replica: reading snapshot payload failed")
	}
	if ok {
		if err := r.loadSnapshot(data); err != nil {
			return errors.Wrap(err, "replica: applying snapshot failed")
		}
	}

	r.mu.Lock()
	r.lastMasterID = masterID
	r.lastOffset = off
	r.offset = off
	r.mu.Unlock()
	return nil
}

func (r *Replica) handleContinue(dec *resp.Decoder) error {
	data, ok, err := dec.ReadBulkPayload()
	if err != nil {
		return errors.Wrap(err, "replica: reading CONTINUE payload failed")
	}
	if !ok {
		return nil
	}
	return r.applyStreamBytes(data)
}

// applyStreamBytes decodes and applies a buffer of concatenated command
// arrays, advancing the offset by each command's exact wire length.
func (r *Replica) applyStreamBytes(data []byte) error {
	dec := resp.NewDecoder(bytes.NewReader(data))
	for {
		args, err := dec.ReadCommand()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "replica: decoding buffered stream failed")
		}
		if err := r.applyAndAdvance(args); err != nil {
			return err
		}
	}
}

func (r *Replica) applyAndAdvance(args [][]byte) error {
	if err := r.apply(args); err != nil {
		return errors.Wrap(err, "replica: applying command failed")
	}
	n := int64(len(resp.Encode(args)))
	r.mu.Lock()
	r.offset += n
	r.lastOffset = r.offset
	r.stats.CommandsApplied++
	r.stats.BytesApplied += n
	r.mu.Unlock()
	return nil
}

// streamLoop reads command arrays off the wire (the live tail of the
// replication stream) until the connection errors or ctx is cancelled.
func (r *Replica) streamLoop(ctx context.Context, dec *resp.Decoder, conn Conn, writeMu *sync.Mutex) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		args, err := dec.ReadCommand()
		if err != nil {
			return errors.Wrap(err, "replica: stream read failed")
		}
		if err := r.applyAndAdvance(args); err != nil {
			r.setState(Err)
			return err
		}
		if err := r.sendAck(writeMu, conn); err != nil {
			r.logger.Warn("replica: ACK send failed", zap.Error(err))
		}
	}
}

func (r *Replica) sendAck(writeMu *sync.Mutex, conn io.Writer) error {
	r.mu.Lock()
	offset := r.offset
	r.mu.Unlock()

	frame := resp.Encode([][]byte{[]byte("REPLCONF"), []byte("ACK"), []byte(strconv.FormatInt(offset, 10))})
	if _, err := writeLocked(writeMu, conn, frame); err != nil {
		return err
	}
	r.mu.Lock()
	r.stats.LastAckOffset = offset
	r.mu.Unlock()
	return nil
}

// heartbeatLoop sends PING every heartbeatInterval while the link is
// up; three consecutive send failures close the connection, which
// unblocks streamLoop's read and triggers a reconnect (spec §4.9).
func (r *Replica) heartbeatLoop(ctx context.Context, conn Conn, writeMu *sync.Mutex, onFail func()) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	fails := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dl, ok := conn.(deadliner); ok {
				dl.SetWriteDeadline(time.Now().Add(heartbeatSendTimeout))
			}
			_, err := writeLocked(writeMu, conn, resp.Encode([][]byte{[]byte("PING")}))
			if err != nil {
				fails++
				r.logger.Warn("replica: heartbeat send failed",
					zap.Int("consecutive_failures", fails), zap.Error(err))
				if fails >= heartbeatFailLimit {
					onFail()
					return
				}
				continue
			}
			fails = 0
		}
	}
}

func writeLocked(mu *sync.Mutex, w io.Writer, b []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	return w.Write(b)
}

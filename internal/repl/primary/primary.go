// Package primary implements the primary side of replication (spec
// §4.10, component C11): a single coordinator lock around the
// replication offset, backlog append, and fan-out to streaming
// replicas, plus the PSYNC responder that decides between a partial
// and a full resync.
//
// The per-replica registry is adapted from torua's
// coordinator.ShardRegistry (a RWMutex-guarded map keyed by a stable
// ID); here the map holds replica channels and acked offsets instead of
// shard assignments. Fan-out follows torua's cluster package's
// broadcast discipline: send to every target concurrently, log and drop
// failures, never let one bad peer block the others.
package primary

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/nimbuskv/internal/metrics"
	"github.com/dreamware/nimbuskv/internal/repl/backlog"
)

// SnapshotFunc produces a serialized snapshot blob (the RDB encoding of
// the current keyspace) for a full resync.
type SnapshotFunc func() ([]byte, error)

// replicaHandle is one registered replica: a buffered channel the
// transport layer drains to write bytes to the socket, plus the
// bookkeeping spec §4.10/§9's Open Question asks for.
type replicaHandle struct {
	id             string
	ch             chan []byte
	ackedOffset    int64
	connectedSince time.Time
}

// Coordinator is the primary-side replication coordinator: one per
// keyspace, shared by every client-write path and every replica
// connection.
type Coordinator struct {
	mu sync.Mutex

	runID    string
	offset   int64
	backlog  *backlog.Backlog
	snapshot SnapshotFunc

	replicas map[string]*replicaHandle

	logger  *zap.Logger
	metrics *metrics.Registry
}

// New returns a Coordinator with a freshly generated run ID and an
// empty backlog of the given capacity.
func New(backlogCapacity int, snapshot SnapshotFunc, logger *zap.Logger, reg *metrics.Registry) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	return &Coordinator{
		runID:    runID,
		backlog:  backlog.New(backlogCapacity, runID),
		snapshot: snapshot,
		replicas: make(map[string]*replicaHandle),
		logger:   logger,
		metrics:  reg,
	}
}

// RunID returns this primary's stable replication identity.
func (c *Coordinator) RunID() string {
	return c.runID
}

// Offset returns the current master replication offset.
func (c *Coordinator) Offset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Propagate is called once per locally executed write command, with
// its already RESP-encoded bytes. It is the commit point: the offset
// advance, backlog append, and fan-out to every STREAMING replica all
// happen under one lock acquisition, which is what makes the resulting
// order the commit order (spec §4.10 step 2).
func (c *Coordinator) Propagate(encoded []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += int64(len(encoded))
	c.backlog.Append(encoded)
	targets := make([]*replicaHandle, 0, len(c.replicas))
	for _, h := range c.replicas {
		targets = append(targets, h)
	}
	if c.metrics != nil {
		c.metrics.BacklogBytesUsed.Set(float64(c.backlog.Latest() - c.backlog.Earliest()))
	}

	if len(targets) == 0 {
		return
	}

	var g errgroup.Group
	for _, h := range targets {
		h := h
		g.Go(func() error {
			select {
			case h.ch <- encoded:
				return nil
			default:
				return fmt.Errorf("replica %s channel full", h.id)
			}
		})
	}
	if err := g.Wait(); err != nil {
		// Individual failures are handled per-replica below; g.Wait only
		// returns the first one, so re-scan and drop any channel that's
		// still over capacity rather than trusting the aggregate error.
		c.dropStalledReplicas(targets)
		c.logger.Warn("primary: propagation hit a full replica channel", zap.Error(err))
	}
}

// dropStalledReplicas removes any replica whose channel send in
// Propagate could not be delivered. Spec §4.10: "write to a replica
// channel fails → drop that replica from STREAMING; do not retry."
// The caller holds c.mu.
func (c *Coordinator) dropStalledReplicas(targets []*replicaHandle) {
	for _, h := range targets {
		if len(h.ch) == cap(h.ch) {
			delete(c.replicas, h.id)
			c.logger.Warn("primary: dropped replica with a full channel", zap.String("replica_id", h.id))
		}
	}
}

// PsyncResult is the outcome of a PSYNC request: either a partial
// resync (Continue=true, BacklogData holds the byte range to emit) or a
// full resync (Continue=false, Snapshot holds the blob to emit), always
// paired with the offset the replica should be recorded at afterward.
type PsyncResult struct {
	Continue    bool
	RunID       string
	Offset      int64
	BacklogData []byte
	Snapshot    []byte
}

// HandlePSync decides between a partial and a full resync for a
// requesting replica and registers it as STREAMING, returning a channel
// the caller's transport goroutine should drain and write to the
// replica's socket.
func (c *Coordinator) HandlePSync(ctx context.Context, replicaID, requestedRunID string, requestedOffset int64) (PsyncResult, <-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if requestedRunID == c.runID && c.backlog.CanServe(c.runID, requestedOffset) {
		data, err := c.backlog.RangeSince(requestedOffset)
		if err != nil {
			return PsyncResult{}, nil, err
		}
		h := c.registerLocked(replicaID)
		c.ackLocked(replicaID, c.offset)
		return PsyncResult{Continue: true, RunID: c.runID, Offset: c.offset, BacklogData: data}, h.ch, nil
	}

	snap, err := c.snapshot()
	if err != nil {
		return PsyncResult{}, nil, fmt.Errorf("primary: snapshot generation failed: %w", err)
	}
	h := c.registerLocked(replicaID)
	c.ackLocked(replicaID, c.offset)
	return PsyncResult{Continue: false, RunID: c.runID, Offset: c.offset, Snapshot: snap}, h.ch, nil
}

func (c *Coordinator) registerLocked(replicaID string) *replicaHandle {
	h := &replicaHandle{id: replicaID, ch: make(chan []byte, 1024), connectedSince: time.Now()}
	c.replicas[replicaID] = h
	return h
}

// Ack records a replica's acknowledged offset, per spec §9's Open
// Question on REPLCONF ACK handling: tracked, logged, no lag-based
// action taken.
func (c *Coordinator) Ack(replicaID string, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ackLocked(replicaID, offset)
}

func (c *Coordinator) ackLocked(replicaID string, offset int64) {
	h, ok := c.replicas[replicaID]
	if !ok {
		return
	}
	h.ackedOffset = offset
	if c.metrics != nil {
		c.metrics.ReplicaOffset.WithLabelValues(replicaID).Set(float64(offset))
	}
	c.logger.Debug("primary: replica ack", zap.String("replica_id", replicaID), zap.Int64("offset", offset))
}

// Disconnect removes a replica from the STREAMING set, e.g. when its
// transport goroutine observes a socket error.
func (c *Coordinator) Disconnect(replicaID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.replicas, replicaID)
}

// ReplicaStats is a point-in-time view of one registered replica.
type ReplicaStats struct {
	ID             string
	AckedOffset    int64
	ConnectedSince time.Time
}

// Replicas returns a snapshot of every currently STREAMING replica.
func (c *Coordinator) Replicas() []ReplicaStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ReplicaStats, 0, len(c.replicas))
	for _, h := range c.replicas {
		out = append(out, ReplicaStats{ID: h.id, AckedOffset: h.ackedOffset, ConnectedSince: h.connectedSince})
	}
	return out
}

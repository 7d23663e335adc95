package primary

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/dreamware/nimbuskv/internal/metrics"
)

func snapshotStub(data []byte) SnapshotFunc {
	return func() ([]byte, error) { return data, nil }
}

func TestPropagateAdvancesOffsetAndBacklog(t *testing.T) {
	c := New(1<<20, snapshotStub(nil), zap.NewNop(), nil)

	c.Propagate([]byte("cmd-one"))
	c.Propagate([]byte("cmd-two"))

	if got, want := c.Offset(), int64(len("cmd-one")+len("cmd-two")); got != want {
		t.Fatalf("offset = %d, want %d", got, want)
	}
}

func TestHandlePSyncFullResyncWhenRunIDUnknown(t *testing.T) {
	c := New(1<<20, snapshotStub([]byte("snapshot-bytes")), zap.NewNop(), nil)
	c.Propagate([]byte("abc"))

	result, ch, err := c.HandlePSync(context.Background(), "replica-1", "?", -1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Continue {
		t.Fatal("expected a full resync for an unknown run id")
	}
	if string(result.Snapshot) != "snapshot-bytes" {
		t.Fatalf("snapshot = %q, want %q", result.Snapshot, "snapshot-bytes")
	}
	if result.Offset != c.Offset() {
		t.Fatalf("result offset = %d, want %d", result.Offset, c.Offset())
	}
	if ch == nil {
		t.Fatal("expected a non-nil replica channel")
	}

	replicas := c.Replicas()
	if len(replicas) != 1 || replicas[0].ID != "replica-1" {
		t.Fatalf("unexpected replica registry: %+v", replicas)
	}
}

func TestHandlePSyncPartialResyncWhenOffsetInWindow(t *testing.T) {
	c := New(1<<20, snapshotStub(nil), zap.NewNop(), nil)
	c.Propagate([]byte("abc"))
	c.Propagate([]byte("def"))

	result, _, err := c.HandlePSync(context.Background(), "replica-1", c.RunID(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Continue {
		t.Fatal("expected a partial resync when the offset is within the backlog window")
	}
	if string(result.BacklogData) != "def" {
		t.Fatalf("backlog data = %q, want %q", result.BacklogData, "def")
	}
}

func TestPropagateDropsReplicaWithFullChannel(t *testing.T) {
	c := New(1<<20, snapshotStub(nil), zap.NewNop(), nil)
	_, ch, err := c.HandlePSync(context.Background(), "slow-replica", "?", -1)
	if err != nil {
		t.Fatal(err)
	}

	// Fill the replica's channel to capacity so the next propagate can't
	// deliver without blocking.
	for i := 0; i < cap(ch); i++ {
		c.Propagate([]byte{byte(i)})
	}
	before := len(c.Replicas())
	if before != 1 {
		t.Fatalf("replica count = %d, want 1 before overflow", before)
	}

	c.Propagate([]byte("overflow"))

	after := c.Replicas()
	if len(after) != 0 {
		t.Fatalf("expected the stalled replica to be dropped, got %+v", after)
	}
}

func TestAckRecordsOffsetAndMetrics(t *testing.T) {
	reg := metrics.New("nimbuskv_test_ack")
	c := New(1<<20, snapshotStub(nil), zap.NewNop(), reg)
	_, _, err := c.HandlePSync(context.Background(), "replica-1", "?", -1)
	if err != nil {
		t.Fatal(err)
	}

	c.Ack("replica-1", 42)

	replicas := c.Replicas()
	if len(replicas) != 1 || replicas[0].AckedOffset != 42 {
		t.Fatalf("unexpected replica state: %+v", replicas)
	}
}

func TestDisconnectRemovesReplica(t *testing.T) {
	c := New(1<<20, snapshotStub(nil), zap.NewNop(), nil)
	c.HandlePSync(context.Background(), "replica-1", "?", -1)
	c.Disconnect("replica-1")
	if len(c.Replicas()) != 0 {
		t.Fatal("expected the replica to be removed")
	}
}

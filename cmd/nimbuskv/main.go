// Package main is NimbusKV's process entrypoint. It mirrors torua's
// cmd/node shape — read configuration from the environment, construct the
// runtime's components, install signal handling, block until shutdown —
// but does not open a RESP listener: the wire protocol's network server,
// connection handling, and individual command implementations are out of
// scope. What's wired here is everything that sits underneath where that
// listener would eventually attach: the keyspace, its persistence
// (RDB/AOF), and, when configured, one side of replication.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/nimbuskv/internal/aof"
	"github.com/dreamware/nimbuskv/internal/config"
	"github.com/dreamware/nimbuskv/internal/keyspace"
	"github.com/dreamware/nimbuskv/internal/metrics"
	"github.com/dreamware/nimbuskv/internal/rdb"
	"github.com/dreamware/nimbuskv/internal/repl/primary"
	"github.com/dreamware/nimbuskv/internal/repl/replica"
)

// logFatal is a variable so tests can intercept a fatal exit path without
// terminating the test process, matching torua's cmd/node convention.
var logFatal = log.Fatalf

// Runtime holds every component main wires together, for tests that want
// to exercise Run without an OS process around it.
type Runtime struct {
	Keyspace *keyspace.Keyspace
	AOF      *aof.Writer
	Metrics  *metrics.Registry

	Primary *primary.Coordinator
	Replica *replica.Replica

	cfg config.Config
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logFatal("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		logFatal("logger: %v", err)
	}
	defer logger.Sync()

	rt, err := NewRuntime(cfg, logger)
	if err != nil {
		logFatal("startup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if rt.Replica != nil {
		go func() {
			if err := rt.Replica.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("replica link ended", zap.Error(err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancel()
	if err := rt.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("nimbuskv stopped")
}

// NewRuntime constructs every component config describes: the keyspace,
// loaded from an existing RDB/AOF file if present, an AOF writer if
// enabled, and a replica link if ReplicaOf is set. A standalone process
// (no ReplicaOf) gets a primary.Coordinator ready to serve PSYNC once a
// transport layer calls HandlePSync, even though nothing in this package
// drives one.
func NewRuntime(cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	ks := keyspace.New(cfg.DBCount)
	reg := metrics.New("nimbuskv")

	if cfg.RDBEnabled {
		if _, err := rdb.Load(cfg.RDBFile, ks); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading rdb snapshot: %w", err)
		}
	}

	applier := newReplayApplier(ks)

	var writer *aof.Writer
	if cfg.AOFEnabled {
		w, err := aof.Open(cfg.AOFFile, cfg.AOFFsync, logger)
		if err != nil {
			return nil, fmt.Errorf("opening aof: %w", err)
		}
		if _, err := aof.Recover(cfg.AOFFile, applier.Apply, logger); err != nil {
			w.Close()
			return nil, fmt.Errorf("replaying aof: %w", err)
		}
		writer = w
	}

	rt := &Runtime{Keyspace: ks, AOF: writer, Metrics: reg, cfg: cfg}

	if cfg.ReplicaOf != "" {
		rt.Replica = replica.New(tcpDialer(cfg.ReplicaOf), applier.Apply, func(data []byte) error {
			return loadSnapshotBytes(ks, data)
		}, logger)
	} else {
		snapshotFn := func() ([]byte, error) { return snapshotKeyspace(ks) }
		rt.Primary = primary.New(cfg.BacklogSize, snapshotFn, logger, reg)
	}

	return rt, nil
}

// Shutdown closes (and so flushes) the AOF writer if one is open;
// otherwise, when RDB is enabled, it saves a snapshot. With an AOF open no
// RDB snapshot is saved. It does not
// stop the replica/primary goroutines; callers cancel their context first.
func (rt *Runtime) Shutdown() error {
	if rt.AOF != nil {
		return rt.AOF.Close()
	}
	if rt.cfg.RDBEnabled {
		return rdb.Save(rt.Keyspace, rt.cfg.RDBFile)
	}
	return nil
}

func tcpDialer(addr string) replica.Dialer {
	return func(ctx context.Context) (replica.Conn, error) {
		d := net.Dialer{}
		return d.DialContext(ctx, "tcp", addr)
	}
}

// snapshotKeyspace renders a full RDB snapshot to bytes for a PSYNC full
// resync, going through a temp file since rdb.Save only knows how to
// write to a path.
func snapshotKeyspace(ks *keyspace.Keyspace) ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("nimbuskv-psync-%d.rdb", time.Now().UnixNano()))
	defer os.Remove(tmp)
	if err := rdb.Save(ks, tmp); err != nil {
		return nil, err
	}
	return os.ReadFile(tmp)
}

// loadSnapshotBytes loads a PSYNC full-resync payload by writing it to a
// temp file and delegating to rdb.Load, the same bridge snapshotKeyspace
// uses in the other direction.
func loadSnapshotBytes(ks *keyspace.Keyspace, data []byte) error {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("nimbuskv-fullresync-%d.rdb", time.Now().UnixNano()))
	defer os.Remove(tmp)
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	ks.FlushAll()
	_, err := rdb.Load(tmp, ks)
	return err
}

// Package config loads NimbusKV's process configuration from the
// environment, per spec §6. It mirrors torua's cmd/node getenv/mustGetenv
// pattern: a handful of typed fields, defaults applied inline, a single
// constructor that fails loudly on a malformed value.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dreamware/nimbuskv/internal/aof"
)

// Config is the full set of process-level settings spec §6 names.
type Config struct {
	Host string
	Port int

	DBCount int

	AOFEnabled bool
	RDBEnabled bool

	RDBFile string
	AOFFile string

	AOFFsync aof.FsyncPolicy

	BacklogSize int

	HeartbeatInterval int // milliseconds

	// ReplicaOf is "host:port" of a primary to replicate from, or empty
	// to run standalone. Not one of spec §6's named keys; added because
	// a replica has to dial somewhere.
	ReplicaOf string
}

const (
	defaultDBCount           = 16
	defaultBacklogSize       = 1048576
	defaultHeartbeatInterval = 1000
)

// FromEnv builds a Config from environment variables, applying spec §6's
// defaults for anything unset. It returns an error on a present-but-malformed
// value (not on an absent optional one).
func FromEnv() (Config, error) {
	c := Config{
		Host:              getenv("NIMBUSKV_HOST", "127.0.0.1"),
		DBCount:           defaultDBCount,
		RDBFile:           getenv("NIMBUSKV_RDB_FILE", "dump.rdb"),
		AOFFile:           getenv("NIMBUSKV_AOF_FILE", "appendonly.aof"),
		BacklogSize:       defaultBacklogSize,
		HeartbeatInterval: defaultHeartbeatInterval,
		ReplicaOf:         getenv("NIMBUSKV_REPLICAOF", ""),
	}

	var err error
	if c.Port, err = getenvInt("NIMBUSKV_PORT", 6379); err != nil {
		return Config{}, err
	}
	if c.DBCount, err = getenvInt("NIMBUSKV_DB_COUNT", defaultDBCount); err != nil {
		return Config{}, err
	}
	if c.BacklogSize, err = getenvInt("NIMBUSKV_BACKLOG_SIZE", defaultBacklogSize); err != nil {
		return Config{}, err
	}
	if c.HeartbeatInterval, err = getenvInt("NIMBUSKV_HEARTBEAT_INTERVAL_MS", defaultHeartbeatInterval); err != nil {
		return Config{}, err
	}
	if c.AOFEnabled, err = getenvBool("NIMBUSKV_AOF_ENABLED", false); err != nil {
		return Config{}, err
	}
	if c.RDBEnabled, err = getenvBool("NIMBUSKV_RDB_ENABLED", true); err != nil {
		return Config{}, err
	}

	fsyncStr := getenv("NIMBUSKV_AOF_FSYNC", "everysec")
	c.AOFFsync, err = aof.ParseFsyncPolicy(fsyncStr)
	if err != nil {
		return Config{}, err
	}

	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer", k, v)
	}
	return n, nil
}

func getenvBool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s=%q is not a boolean", k, v)
	}
	return b, nil
}

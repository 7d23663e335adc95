package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/nimbuskv/internal/aof"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

var allKeys = []string{
	"NIMBUSKV_HOST", "NIMBUSKV_PORT", "NIMBUSKV_DB_COUNT",
	"NIMBUSKV_AOF_ENABLED", "NIMBUSKV_RDB_ENABLED", "NIMBUSKV_RDB_FILE",
	"NIMBUSKV_AOF_FILE", "NIMBUSKV_AOF_FSYNC", "NIMBUSKV_BACKLOG_SIZE",
	"NIMBUSKV_HEARTBEAT_INTERVAL_MS",
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t, allKeys...)

	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", c.Host)
	assert.Equal(t, 6379, c.Port)
	assert.Equal(t, 16, c.DBCount)
	assert.False(t, c.AOFEnabled)
	assert.True(t, c.RDBEnabled)
	assert.Equal(t, "dump.rdb", c.RDBFile)
	assert.Equal(t, "appendonly.aof", c.AOFFile)
	assert.Equal(t, aof.FsyncEverySec, c.AOFFsync)
	assert.Equal(t, 1048576, c.BacklogSize)
	assert.Equal(t, 1000, c.HeartbeatInterval)
	assert.Empty(t, c.ReplicaOf)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t, allKeys...)

	os.Setenv("NIMBUSKV_HOST", "0.0.0.0")
	os.Setenv("NIMBUSKV_PORT", "7000")
	os.Setenv("NIMBUSKV_DB_COUNT", "4")
	os.Setenv("NIMBUSKV_AOF_ENABLED", "true")
	os.Setenv("NIMBUSKV_RDB_ENABLED", "false")
	os.Setenv("NIMBUSKV_AOF_FSYNC", "always")
	os.Setenv("NIMBUSKV_BACKLOG_SIZE", "2048")
	os.Setenv("NIMBUSKV_HEARTBEAT_INTERVAL_MS", "500")
	os.Setenv("NIMBUSKV_REPLICAOF", "10.0.0.5:6379")

	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", c.Host)
	assert.Equal(t, 7000, c.Port)
	assert.Equal(t, 4, c.DBCount)
	assert.True(t, c.AOFEnabled)
	assert.False(t, c.RDBEnabled)
	assert.Equal(t, aof.FsyncAlways, c.AOFFsync)
	assert.Equal(t, 2048, c.BacklogSize)
	assert.Equal(t, 500, c.HeartbeatInterval)
	assert.Equal(t, "10.0.0.5:6379", c.ReplicaOf)
}

func TestFromEnvRejectsMalformedInteger(t *testing.T) {
	clearEnv(t, allKeys...)
	os.Setenv("NIMBUSKV_PORT", "not-a-port")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvRejectsMalformedFsyncPolicy(t *testing.T) {
	clearEnv(t, allKeys...)
	os.Setenv("NIMBUSKV_AOF_FSYNC", "sometimes")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvRejectsMalformedBool(t *testing.T) {
	clearEnv(t, allKeys...)
	os.Setenv("NIMBUSKV_AOF_ENABLED", "maybe")

	_, err := FromEnv()
	require.Error(t, err)
}

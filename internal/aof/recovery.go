package aof

import (
	"errors"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/dreamware/nimbuskv/internal/resp"
)

// RecoveryStats reports the outcome of a crash-recovery replay.
type RecoveryStats struct {
	Recovered int
	TornTail  bool
}

// Recover streams path, decoding one RESP command array at a time and
// invoking apply for each. A torn trailing record (short read, length
// mismatch, or any other decode failure) stops recovery without
// returning an error: every fully-formed record before it has already
// been applied, matching spec §4.7's "recovery never aborts on partial
// data" rule. A missing file is treated as an empty log.
func Recover(path string, apply func(args [][]byte) error, logger *zap.Logger) (RecoveryStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RecoveryStats{}, nil
		}
		return RecoveryStats{}, err
	}
	defer f.Close()

	dec := resp.NewDecoder(f)
	var stats RecoveryStats
	for {
		args, err := dec.ReadCommand()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return stats, nil
			}
			stats.TornTail = true
			logger.Warn("aof: stopping recovery at torn or malformed record",
				zap.Int("recovered", stats.Recovered), zap.Error(err))
			return stats, nil
		}
		if err := apply(args); err != nil {
			return stats, err
		}
		stats.Recovered++
	}
}

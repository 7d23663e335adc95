package rdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc64"
	"io"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/dreamware/nimbuskv/internal/bytestr"
	"github.com/dreamware/nimbuskv/internal/keyspace"
	"github.com/dreamware/nimbuskv/internal/values"
)

// ErrCorrupt reports a checksum or framing failure in a snapshot file.
// Per spec §7, a checksum mismatch on load aborts the load entirely
// (unlike AOF recovery, which tolerates a torn tail).
type ErrCorrupt struct {
	Reason string
}

func (e *ErrCorrupt) Error() string { return "rdb: corrupt snapshot: " + e.Reason }

// Load reads the snapshot at path and applies every entry into ks via
// Database.Put, overwriting any existing keys. The file is memory-mapped
// read-only so loading a large snapshot does not require doubling
// resident memory for a copy.
func Load(path string, ks *keyspace.Keyspace) (recovered int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("rdb: mmap: %w", err)
	}
	defer m.Unmap()

	data := []byte(m)
	if len(data) < len(header)+8 {
		return 0, &ErrCorrupt{Reason: "file shorter than header+checksum"}
	}
	if err := validateHeader(data[:len(header)]); err != nil {
		return 0, &ErrCorrupt{Reason: err.Error()}
	}

	payload := data[:len(data)-8]
	trailer := data[len(data)-8:]
	wantSum := binary.LittleEndian.Uint64(trailer)
	gotSum := crc64.Checksum(payload, crcTable)
	if gotSum != wantSum {
		return 0, &ErrCorrupt{Reason: "checksum mismatch"}
	}

	body := bytes.NewReader(data[len(header) : len(data)-8])
	dbIndex := 0
	for {
		opOrType, err := body.ReadByte()
		if err == io.EOF {
			return recovered, &ErrCorrupt{Reason: "missing EOF opcode"}
		}
		if err != nil {
			return recovered, err
		}

		switch opOrType {
		case opEOF:
			return recovered, nil

		case opSelectDB:
			n, err := readLength(body)
			if err != nil {
				return recovered, err
			}
			dbIndex = n

		default:
			key, val, err := readEntry(body, opOrType)
			if err != nil {
				return recovered, err
			}
			db, err := ks.DB(dbIndex)
			if err != nil {
				return recovered, err
			}
			db.Put(key, val)
			recovered++
		}
	}
}

func readEntry(r *bytes.Reader, wireType byte) (bytestr.Str, values.Value, error) {
	keyBytes, err := readBytes(r)
	if err != nil {
		return bytestr.Str{}, nil, err
	}
	key := bytestr.FromBytesTrusted(keyBytes)

	switch wireType {
	case wireString:
		b, err := readBytes(r)
		if err != nil {
			return key, nil, err
		}
		return key, values.NewString(b), nil

	case wireList:
		n, err := readLength(r)
		if err != nil {
			return key, nil, err
		}
		l := values.NewList()
		for i := 0; i < n; i++ {
			b, err := readBytes(r)
			if err != nil {
				return key, nil, err
			}
			l.RPush(bytestr.FromBytesTrusted(b))
		}
		return key, l, nil

	case wireSet:
		n, err := readLength(r)
		if err != nil {
			return key, nil, err
		}
		s := values.NewSet()
		for i := 0; i < n; i++ {
			b, err := readBytes(r)
			if err != nil {
				return key, nil, err
			}
			s.Add(bytestr.FromBytesTrusted(b))
		}
		return key, s, nil

	case wireHash:
		n, err := readLength(r)
		if err != nil {
			return key, nil, err
		}
		h := values.NewHash()
		for i := 0; i < n; i++ {
			f, err := readBytes(r)
			if err != nil {
				return key, nil, err
			}
			v, err := readBytes(r)
			if err != nil {
				return key, nil, err
			}
			h.Set(bytestr.FromBytesTrusted(f), bytestr.FromBytesTrusted(v))
		}
		return key, h, nil

	case wireZSet:
		n, err := readLength(r)
		if err != nil {
			return key, nil, err
		}
		z := values.NewSortedSet()
		for i := 0; i < n; i++ {
			m, err := readBytes(r)
			if err != nil {
				return key, nil, err
			}
			var scoreBuf [8]byte
			if _, err := io.ReadFull(r, scoreBuf[:]); err != nil {
				return key, nil, err
			}
			score := math.Float64frombits(binary.BigEndian.Uint64(scoreBuf[:]))
			z.Add(bytestr.FromBytesTrusted(m), score)
		}
		return key, z, nil

	default:
		return key, nil, fmt.Errorf("rdb: unknown wire type byte 0x%02x", wireType)
	}
}

// Package resp implements the wire framing shared by internal/aof and
// internal/repl (spec §6): arrays of bulk strings, plus the handful of
// scalar reply types needed by the PSYNC handshake.
//
//	*<n>\r\n
//	( $<len>\r\n <bytes> \r\n ){n}
//
// This package encodes and decodes that framing only. It does not parse
// or dispatch commands by name and is not a network server — those
// remain out of scope (spec §1's Non-goals). No pack repo speaks RESP;
// the framing here follows spec §6's byte-exact grammar directly, the
// way torua/internal/cluster owns its HTTP/JSON wire format without
// owning routing.
package resp

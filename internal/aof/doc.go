// Package aof implements NimbusKV's command log (spec §4.7/§6, component
// C8): a durable, append-only record of every executed write command,
// encoded with internal/resp's RESP framing, with batched asynchronous
// writes, crash recovery tolerant of a torn tail, and background
// rewrite ("bgrewrite") that compacts the log to the minimal command
// sequence needed to reconstruct the keyspace.
//
// The write path's bounded channel and batching writer goroutine are
// adapted from boomballa-df2redis's FlowWriter (a Redis-replication
// pipeline writer); here they drive a local append-only file instead of a
// remote pipeline. Backpressure is a condition variable on the pending
// byte count, and a rate limiter coalesces the everysec fsyncs.
package aof

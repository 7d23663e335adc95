// Package backlog implements the replication backlog (spec §4.8,
// component C9): a fixed-capacity ring buffer of recently propagated
// bytes, addressed by absolute offset, that lets a reconnecting replica
// catch up without a full resync as long as its last-known offset is
// still within the retained window.
package backlog

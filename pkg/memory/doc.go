// Package memory keeps the session's rolling conversation buffer.
//
// Every turn is appended to a DurableLog in the background, one write at a
// time: recording a new turn first waits for the previous write. The
// in-memory buffer is bounded by a threshold T; once it grows past T the
// oldest T/2 entries are summarized into a single entry at the front. The
// durable log is never compacted.
package memory

package memory

import (
	"context"
	"errors"
)

// ErrClosed is returned by a DurableLog after Close.
var ErrClosed = errors.New("memory log closed")

// DurableLog is the append-only store every turn is persisted to.
type DurableLog interface {
	AppendEntry(ctx context.Context, e Entry) error
	// Recent returns up to n most recent entries, oldest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	Close() error
}

// Summarizer condenses a transcript into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

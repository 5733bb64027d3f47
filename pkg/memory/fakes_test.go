package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// recordingLog keeps appended entries and tracks write concurrency.
type recordingLog struct {
	mu       sync.Mutex
	entries  []Entry
	delay    time.Duration
	fail     bool
	inFlight int32
	maxSeen  int32
	closed   bool
}

func (l *recordingLog) AppendEntry(_ context.Context, e Entry) error {
	n := atomic.AddInt32(&l.inFlight, 1)
	defer atomic.AddInt32(&l.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&l.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&l.maxSeen, seen, n) {
			break
		}
	}

	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.fail {
		return errors.New("disk full")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *recordingLog) Recent(_ context.Context, n int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.entries) {
		n = len(l.entries)
	}
	return append([]Entry(nil), l.entries[len(l.entries)-n:]...), nil
}

func (l *recordingLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *recordingLog) all() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

type fakeSummarizer struct {
	mu          sync.Mutex
	transcripts []string
	summary     string
	err         error
}

func (s *fakeSummarizer) Summarize(_ context.Context, transcript string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, transcript)
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

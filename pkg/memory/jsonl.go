package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// JSONLLog appends entries to one JSON-lines file per day under dir.
type JSONLLog struct {
	dir    string
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// OpenJSONLLog creates dir when missing.
func OpenJSONLLog(dir string, logger zerolog.Logger) (*JSONLLog, error) {
	if dir == "" {
		return nil, errors.New("memory directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}
	return &JSONLLog{dir: dir, logger: logger}, nil
}

func (l *JSONLLog) pathFor(e Entry) string {
	return filepath.Join(l.dir, e.Time.Format("2006-01-02")+".jsonl")
}

// AppendEntry writes e as one line and syncs the file.
func (l *JSONLLog) AppendEntry(_ context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	file, err := os.OpenFile(l.pathFor(e), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open memory file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

// Recent reads day files newest first until n entries are collected.
func (l *JSONLLog) Recent(_ context.Context, n int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(l.dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	var collected []Entry
	for _, path := range files {
		day, err := l.readFile(path)
		if err != nil {
			return nil, err
		}
		collected = append(day, collected...)
		if len(collected) >= n {
			break
		}
	}
	if len(collected) > n {
		collected = collected[len(collected)-n:]
	}
	return collected, nil
}

func (l *JSONLLog) readFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			l.logger.Warn().Err(err).Str("file", filepath.Base(path)).Int("line", lineNum).Msg("Skipping malformed memory line")
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// Close marks the log closed.
func (l *JSONLLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

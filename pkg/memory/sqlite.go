package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteLog persists entries to the memorylog table.
type SQLiteLog struct {
	db     *sql.DB
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// OpenSQLiteLog opens (and creates when missing) the database at path.
func OpenSQLiteLog(path string, logger zerolog.Logger) (*SQLiteLog, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	l := &SQLiteLog{db: db, logger: logger}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Memory log opened")
	return l, nil
}

func (l *SQLiteLog) initSchema() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS memorylog (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			user_name TEXT,
			user_message TEXT,
			eva_message TEXT,
			observation TEXT,
			analysis TEXT,
			strategy TEXT,
			premeditation TEXT,
			action TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_memorylog_time ON memorylog(time);
	`)
	return err
}

// AppendEntry inserts one row.
func (l *SQLiteLog) AppendEntry(ctx context.Context, e Entry) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	action, err := json.Marshal(e.Action)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO memorylog (time, user_name, user_message, eva_message, observation, analysis, strategy, premeditation, action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.Format(time.RFC3339Nano),
		nullable(e.SpeakerName),
		nullable(e.UserMessage),
		e.AgentMessage,
		nullable(e.Observation),
		nullable(e.Analysis),
		nullable(e.Strategy),
		nullable(e.Premeditation),
		string(action),
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory entry: %w", err)
	}
	return nil
}

// Recent returns up to n most recent rows, oldest first.
func (l *SQLiteLog) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT time, user_name, user_message, eva_message, observation, analysis, strategy, premeditation, action
		FROM (SELECT * FROM memorylog ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			ts                                                     string
			user, msg, agent, obs, analysis, strategy, premed, act sql.NullString
		)
		if err := rows.Scan(&ts, &user, &msg, &agent, &obs, &analysis, &strategy, &premed, &act); err != nil {
			return nil, fmt.Errorf("failed to scan memory entry: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", ts, err)
		}
		e := Entry{
			Time:          t,
			SpeakerName:   user.String,
			UserMessage:   msg.String,
			AgentMessage:  agent.String,
			Observation:   obs.String,
			Analysis:      analysis.String,
			Strategy:      strategy.String,
			Premeditation: premed.String,
		}
		if act.Valid && act.String != "" {
			if err := json.Unmarshal([]byte(act.String), &e.Action); err != nil {
				l.logger.Warn().Err(err).Str("time", ts).Msg("Skipping malformed action column")
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of persisted entries.
func (l *SQLiteLog) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memorylog").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database.
func (l *SQLiteLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

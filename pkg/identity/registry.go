// Package identity tracks the users EVA has been introduced to, keyed by
// name, with an optional voice id and picture id each.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUnknownUser  = errors.New("user does not exist")
	ErrVoiceTaken   = errors.New("voice id already assigned")
	ErrPictureTaken = errors.New("picture id already assigned")
)

// User is one registered identity.
type User struct {
	Name      string `json:"name"`
	VoiceID   string `json:"voice_id,omitempty"`
	PictureID string `json:"picture_id,omitempty"`
}

// Registry stores users in the ids table and mirrors them in memory.
type Registry struct {
	db     *sql.DB
	logger zerolog.Logger

	mu      sync.RWMutex
	users   map[string]User
	byVoice map[string]string
	byPic   map[string]string
}

// Open opens the registry in the sqlite database at path.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Registry, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ids (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_name TEXT NOT NULL UNIQUE,
			void TEXT,
			pid TEXT
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ids table: %w", err)
	}

	r := &Registry{
		db:      db,
		logger:  logger,
		users:   make(map[string]User),
		byVoice: make(map[string]string),
		byPic:   make(map[string]string),
	}
	if err := r.load(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().Int("users", len(r.users)).Msg("Identity registry loaded")
	return r, nil
}

func (r *Registry) load(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, "SELECT user_name, void, pid FROM ids")
	if err != nil {
		return fmt.Errorf("failed to load ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var voice, pic sql.NullString
		if err := rows.Scan(&name, &voice, &pic); err != nil {
			return fmt.Errorf("failed to scan id row: %w", err)
		}
		r.index(User{Name: name, VoiceID: voice.String, PictureID: pic.String})
	}
	return rows.Err()
}

func (r *Registry) index(u User) {
	r.users[u.Name] = u
	if u.VoiceID != "" {
		r.byVoice[u.VoiceID] = u.Name
	}
	if u.PictureID != "" {
		r.byPic[u.PictureID] = u.Name
	}
}

// IsEmpty reports whether no user has been registered yet.
func (r *Registry) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users) == 0
}

// AddUser registers a new user. Voice and picture ids must be unused.
func (r *Registry) AddUser(ctx context.Context, name, voiceID, pictureID string) error {
	if name == "" {
		return errors.New("user name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[name]; ok {
		return fmt.Errorf("%w: %s", ErrUserExists, name)
	}
	if _, ok := r.byVoice[voiceID]; voiceID != "" && ok {
		return fmt.Errorf("%w: %s", ErrVoiceTaken, voiceID)
	}
	if _, ok := r.byPic[pictureID]; pictureID != "" && ok {
		return fmt.Errorf("%w: %s", ErrPictureTaken, pictureID)
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO ids (user_name, void, pid) VALUES (?, ?, ?)",
		name, nullable(voiceID), nullable(pictureID)); err != nil {
		return fmt.Errorf("failed to add user %s: %w", name, err)
	}

	r.index(User{Name: name, VoiceID: voiceID, PictureID: pictureID})
	r.logger.Info().Str("user", name).Msg("User registered")
	return nil
}

// UpdateUser replaces the non-empty ids of an existing user.
func (r *Registry) UpdateUser(ctx context.Context, name, voiceID, pictureID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.users[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, name)
	}
	if owner, ok := r.byVoice[voiceID]; voiceID != "" && ok && owner != name {
		return fmt.Errorf("%w: %s", ErrVoiceTaken, voiceID)
	}
	if owner, ok := r.byPic[pictureID]; pictureID != "" && ok && owner != name {
		return fmt.Errorf("%w: %s", ErrPictureTaken, pictureID)
	}

	next := cur
	if voiceID != "" {
		next.VoiceID = voiceID
	}
	if pictureID != "" {
		next.PictureID = pictureID
	}

	if _, err := r.db.ExecContext(ctx,
		"UPDATE ids SET void = ?, pid = ? WHERE user_name = ?",
		nullable(next.VoiceID), nullable(next.PictureID), name); err != nil {
		return fmt.Errorf("failed to update user %s: %w", name, err)
	}

	if cur.VoiceID != "" && cur.VoiceID != next.VoiceID {
		delete(r.byVoice, cur.VoiceID)
	}
	if cur.PictureID != "" && cur.PictureID != next.PictureID {
		delete(r.byPic, cur.PictureID)
	}
	r.index(next)
	return nil
}

// NameForVoice returns the user owning a voice id.
func (r *Registry) NameForVoice(voiceID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byVoice[voiceID]
	return name, ok
}

// NameForPicture returns the user owning a picture id.
func (r *Registry) NameForPicture(pictureID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byPic[pictureID]
	return name, ok
}

// Users returns all users sorted by name.
func (r *Registry) Users() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

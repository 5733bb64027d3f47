// Package prompt loads the prompt templates an agent reasons with. Built-in
// templates are embedded; a file of the same name in the prompts directory
// overrides one.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/rs/zerolog"
)

// Template names.
const (
	Persona      = "persona"
	Instructions = "instructions"
	SetupName    = "setup_one"
	SetupDesire  = "setup_two"
	Summarize    = "summarize"
)

// ErrUnknownPrompt is returned for a name with neither an override nor a
// built-in template.
var ErrUnknownPrompt = errors.New("unknown prompt")

//go:embed templates/*.md
var builtin embed.FS

// Store caches templates and persists updates to the prompts directory.
type Store struct {
	dir    string
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]string

	watcher *FileWatcher
}

// NewStore creates a store over dir. An empty dir disables overrides and
// persistence.
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]string),
	}
}

// Load returns the named template.
func (s *Store) Load(name string) (string, error) {
	s.mu.RLock()
	text, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return text, nil
	}

	text, err := s.read(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.cache[name] = text
	s.mu.Unlock()
	return text, nil
}

func (s *Store) read(name string) (string, error) {
	if s.dir != "" {
		data, err := os.ReadFile(s.path(name))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read prompt %s: %w", name, err)
		}
	}

	data, err := builtin.ReadFile("templates/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownPrompt, name)
	}
	return strings.TrimSpace(string(data)), nil
}

// Render executes the named template with data.
func (s *Store) Render(name string, data any) (string, error) {
	text, err := s.Load(name)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt %s: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return b.String(), nil
}

// Update replaces the named template and writes it to the prompts directory.
func (s *Store) Update(name, text string) error {
	text = strings.TrimSpace(text)
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return fmt.Errorf("create prompts dir: %w", err)
		}
		if err := os.WriteFile(s.path(name), []byte(text+"\n"), 0o644); err != nil {
			return fmt.Errorf("write prompt %s: %w", name, err)
		}
	}

	s.mu.Lock()
	s.cache[name] = text
	s.mu.Unlock()

	s.logger.Info().Str("prompt", name).Msg("Prompt updated")
	return nil
}

// AppendPersona adds line to the persona.
func (s *Store) AppendPersona(line string) error {
	persona, err := s.Load(Persona)
	if err != nil {
		return err
	}
	return s.Update(Persona, persona+"\n"+line)
}

// Invalidate drops cached templates so the next Load rereads them.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Watch reloads templates when files in the prompts directory change.
func (s *Store) Watch() error {
	if s.dir == "" || s.watcher != nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create prompts dir: %w", err)
	}

	w, err := NewFileWatcher(s.logger, s.Invalidate)
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	if err := w.Watch(s.dir); err != nil {
		_ = w.Stop()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.watcher = w
	return nil
}

// Close stops watching.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Stop()
	s.watcher = nil
	return err
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".md")
}

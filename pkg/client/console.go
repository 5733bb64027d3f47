package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/harun/eva/pkg/schema"
	"github.com/rs/zerolog"
)

// ConsoleConfig holds console client configuration
type ConsoleConfig struct {
	In       io.Reader
	Out      io.Writer
	Name     string
	Language string
	Logger   zerolog.Logger
}

type line struct {
	text string
	err  error
}

// Console is a line-oriented client: one input line is one sense.
// "Alice:: hello" speaker tags pass through untouched.
type Console struct {
	out      io.Writer
	name     string
	language string
	logger   zerolog.Logger

	lines chan line
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewConsole starts reading cfg.In in the background.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Name == "" {
		cfg.Name = "EVA"
	}
	c := &Console{
		out:      cfg.Out,
		name:     cfg.Name,
		language: cfg.Language,
		logger:   cfg.Logger,
		lines:    make(chan line),
		done:     make(chan struct{}),
	}
	go c.readLoop(cfg.In)
	return c
}

func (c *Console) readLoop(in io.Reader) {
	defer close(c.lines)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case c.lines <- line{text: scanner.Text()}:
		case <-c.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case c.lines <- line{err: err}:
		case <-c.done:
		}
	}
}

// Start has nothing to capture on a console; it reports the configured
// language only.
func (c *Console) Start(ctx context.Context) (*schema.Sense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &schema.Sense{Language: c.language}, nil
}

func (c *Console) Send(_ context.Context, p Payload) error {
	if p.Speech == "" {
		return nil
	}
	return c.printf("%s: %s\n", c.name, p.Speech)
}

func (c *Console) SendOver(_ context.Context) error {
	return c.printf("> ")
}

// Receive waits for the next non-blank line.
func (c *Console) Receive(ctx context.Context) (*schema.Sense, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case l, ok := <-c.lines:
			if !ok {
				return nil, ErrClientClosed
			}
			if l.err != nil {
				return nil, fmt.Errorf("read input: %w", l.err)
			}
			text := strings.TrimSpace(l.text)
			if text == "" {
				continue
			}
			return &schema.Sense{UserMessage: text, Language: c.language}, nil
		}
	}
}

func (c *Console) Speak(_ context.Context, text string, _ bool) error {
	return c.printf("%s: %s\n", c.name, text)
}

// Deactivate stops delivering input. A read already blocked on the
// underlying reader finishes on its own.
func (c *Console) Deactivate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	c.logger.Debug().Msg("Console client deactivated")
	return nil
}

// StreamMusic prints the track; a terminal cannot play it.
func (c *Console) StreamMusic(_ context.Context, t Track) (string, error) {
	if err := c.printf("[music] %s %s\n", t.Title, t.URL); err != nil {
		return "", err
	}
	return musicNotice(t.Title), nil
}

func (c *Console) ShowPage(_ context.Context, title, html string) (string, error) {
	if err := c.printf("[page] %s (%d bytes)\n", title, len(html)); err != nil {
		return "", err
	}
	return pageNotice(title), nil
}

func (c *Console) printf(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

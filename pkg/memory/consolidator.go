package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harun/eva/internal/observability"
	"github.com/harun/eva/internal/tracing"
	"github.com/harun/eva/pkg/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultThreshold is the buffer size that triggers compaction.
	DefaultThreshold = 10
	// MinThreshold is the smallest threshold whose compaction shrinks the
	// buffer: half of it must cover more than the one summary entry.
	MinThreshold = 4

	fallbackSummaryRunes = 2000
	defaultSpeaker       = "user"
)

// Config holds consolidator configuration
type Config struct {
	Log        DurableLog
	Summarizer Summarizer
	Threshold  int
	// AgentName labels the agent's lines in summarization transcripts.
	AgentName string
	Logger    zerolog.Logger
}

// Consolidator owns the rolling buffer of one session.
type Consolidator struct {
	log        DurableLog
	summarizer Summarizer
	threshold  int
	agentName  string
	logger     zerolog.Logger
	writer     *slotWriter

	mu     sync.Mutex
	buffer []Entry
	closed bool
}

// NewConsolidator creates a consolidator over the given durable log.
func NewConsolidator(cfg Config) (*Consolidator, error) {
	observability.EnsureRegistered()

	if cfg.Log == nil {
		return nil, errors.New("durable log is required")
	}
	if cfg.Summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Threshold < MinThreshold {
		return nil, fmt.Errorf("threshold must be at least %d, got %d", MinThreshold, cfg.Threshold)
	}
	if cfg.AgentName == "" {
		cfg.AgentName = "EVA"
	}

	return &Consolidator{
		log:        cfg.Log,
		summarizer: cfg.Summarizer,
		threshold:  cfg.Threshold,
		agentName:  cfg.AgentName,
		logger:     cfg.Logger,
		writer:     newSlotWriter(cfg.Log, cfg.Logger),
	}, nil
}

// RecordTurn records one turn. The durable write runs in the background
// after the previous one completed; compaction, when due, runs before
// RecordTurn returns.
func (c *Consolidator) RecordTurn(ctx context.Context, ts time.Time, sense *schema.Sense, resp schema.Response) Entry {
	entry := NewEntry(ts, sense, resp)

	c.writer.Submit(ctx, entry)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffer = append(c.buffer, entry)
	if len(c.buffer) > c.threshold {
		c.compactLocked(ctx)
	}
	observability.SetMemoryBuffer(len(c.buffer))

	return entry
}

// compactLocked replaces the oldest threshold/2 entries with one summary
// entry at the front of the buffer.
func (c *Consolidator) compactLocked(ctx context.Context) {
	n := c.threshold / 2
	oldest := c.buffer[:n]
	transcript := c.transcript(oldest)

	ctx, span := tracing.StartSpan(ctx, tracing.TracerMemory, "memory.compact",
		attribute.Int("entries", n))
	summary, err := c.summarizer.Summarize(ctx, transcript)
	if err == nil && strings.TrimSpace(summary) == "" {
		err = errors.New("summarizer returned an empty summary")
	}
	tracing.EndSpan(span, err)

	outcome := "summarized"
	if err != nil {
		c.logger.Warn().Err(err).Int("entries", n).Msg("Summarization failed, keeping transcript as summary")
		summary = truncateRunes(transcript, fallbackSummaryRunes)
		outcome = "fallback"
	}
	observability.RecordCompaction(outcome)

	head := Entry{
		Time:         oldest[0].Time,
		AgentMessage: summary,
		Summary:      true,
	}

	rest := c.buffer[n:]
	compacted := make([]Entry, 0, len(rest)+1)
	compacted = append(compacted, head)
	compacted = append(compacted, rest...)
	c.buffer = compacted

	c.logger.Debug().Int("compacted", n).Int("buffer", len(c.buffer)).Msg("Memory buffer compacted")
}

// transcript renders entries as "speaker: message" lines followed by the
// agent's reply.
func (c *Consolidator) transcript(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		if e.UserMessage != "" {
			speaker := e.SpeakerName
			if speaker == "" {
				speaker = defaultSpeaker
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, e.UserMessage)
		}
		fmt.Fprintf(&b, "%s: %s\n", c.agentName, e.AgentMessage)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Recall returns the buffer as conversation history, or nil when empty.
// Only the last turn carries the premeditation.
func (c *Consolidator) Recall() []schema.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.buffer) == 0 {
		return nil
	}

	turns := make([]schema.ConversationTurn, len(c.buffer))
	for i, e := range c.buffer {
		turns[i] = e.turn()
	}
	turns[len(turns)-1].Premeditation = c.buffer[len(c.buffer)-1].Premeditation
	return turns
}

// Len returns the number of buffered entries.
func (c *Consolidator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Flush waits for the in-flight durable write.
func (c *Consolidator) Flush() {
	c.writer.Wait()
}

// Close flushes pending writes and closes the durable log.
func (c *Consolidator) Close() error {
	c.writer.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.log.Close()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/harun/eva/pkg/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setupConsolidator(t *testing.T, log *recordingLog, sum *fakeSummarizer, threshold int) *Consolidator {
	t.Helper()
	c, err := NewConsolidator(Config{
		Log:        log,
		Summarizer: sum,
		Threshold:  threshold,
		AgentName:  "EVA",
		Logger:     zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// buffered copies the rolling buffer under the consolidator's lock.
func buffered(c *Consolidator) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.buffer...)
}

func record(c *Consolidator, n int) {
	for i := 0; i < n; i++ {
		sense, resp := turn(i)
		c.RecordTurn(context.Background(), base.Add(time.Duration(i)*time.Second), sense, resp)
	}
}

func turn(i int) (*schema.Sense, schema.Response) {
	return &schema.Sense{UserMessage: fmt.Sprintf("Alice:: message %d", i)},
		schema.Response{Response: fmt.Sprintf("reply %d", i), Premeditation: fmt.Sprintf("plan %d", i)}
}

func TestNewConsolidator(t *testing.T) {
	t.Run("should require a log and a summarizer", func(t *testing.T) {
		_, err := NewConsolidator(Config{Summarizer: &fakeSummarizer{}})
		assert.Error(t, err)

		_, err = NewConsolidator(Config{Log: &recordingLog{}})
		assert.Error(t, err)
	})

	t.Run("should default the threshold", func(t *testing.T) {
		c := setupConsolidator(t, &recordingLog{}, &fakeSummarizer{summary: "s"}, 0)
		assert.Equal(t, DefaultThreshold, c.threshold)
	})

	t.Run("should reject thresholds whose compaction cannot shrink the buffer", func(t *testing.T) {
		for _, threshold := range []int{1, 2, 3} {
			_, err := NewConsolidator(Config{Log: &recordingLog{}, Summarizer: &fakeSummarizer{}, Threshold: threshold})
			assert.Error(t, err, "threshold %d", threshold)
		}
	})
}

func TestRecordTurn(t *testing.T) {
	t.Run("should split the speaker tag", func(t *testing.T) {
		c := setupConsolidator(t, &recordingLog{}, &fakeSummarizer{summary: "s"}, 10)

		e := c.RecordTurn(context.Background(), base, &schema.Sense{UserMessage: "Alice:: play some jazz", Observation: "a desk"},
			schema.Response{Response: "Sure", Analysis: "wants music"})

		assert.Equal(t, "Alice", e.SpeakerName)
		assert.Equal(t, "play some jazz", e.UserMessage)
		assert.Equal(t, "a desk", e.Observation)
		assert.Equal(t, "wants music", e.Analysis)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("should persist every turn in order with one write at a time", func(t *testing.T) {
		log := &recordingLog{delay: 5 * time.Millisecond}
		c := setupConsolidator(t, log, &fakeSummarizer{summary: "s"}, 4)

		for i := 0; i < 9; i++ {
			sense, resp := turn(i)
			c.RecordTurn(context.Background(), base.Add(time.Duration(i)*time.Second), sense, resp)
		}
		c.Flush()

		entries := log.all()
		require.Len(t, entries, 9)
		for i, e := range entries {
			assert.Equal(t, fmt.Sprintf("message %d", i), e.UserMessage)
			assert.False(t, e.Summary)
		}
		assert.EqualValues(t, 1, log.maxSeen)
	})

	t.Run("should keep the session running when writes fail", func(t *testing.T) {
		log := &recordingLog{fail: true}
		c := setupConsolidator(t, log, &fakeSummarizer{summary: "s"}, 10)

		sense, resp := turn(0)
		c.RecordTurn(context.Background(), base, sense, resp)
		c.Flush()

		assert.Equal(t, 1, c.Len())
		assert.Empty(t, log.all())
	})

	t.Run("should persist a turn recorded on a cancelled context", func(t *testing.T) {
		log := &recordingLog{}
		c := setupConsolidator(t, log, &fakeSummarizer{summary: "s"}, 10)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		sense, resp := turn(0)
		c.RecordTurn(ctx, base, sense, resp)
		c.Flush()

		assert.Len(t, log.all(), 1)
	})
}

func TestCompaction(t *testing.T) {
	t.Run("should summarize the oldest half once past the threshold", func(t *testing.T) {
		sum := &fakeSummarizer{summary: "Alice talked about messages."}
		c := setupConsolidator(t, &recordingLog{}, sum, 10)

		for i := 0; i < 10; i++ {
			sense, resp := turn(i)
			c.RecordTurn(context.Background(), base.Add(time.Duration(i)*time.Minute), sense, resp)
		}
		assert.Equal(t, 10, c.Len())
		assert.Empty(t, sum.transcripts)

		sense, resp := turn(10)
		c.RecordTurn(context.Background(), base.Add(10*time.Minute), sense, resp)

		entries := buffered(c)
		require.Len(t, entries, 6)
		assert.True(t, entries[0].Summary)
		assert.Equal(t, "Alice talked about messages.", entries[0].AgentMessage)
		assert.Empty(t, entries[0].UserMessage)
		assert.Equal(t, base, entries[0].Time)
		assert.Equal(t, "message 5", entries[1].UserMessage)
		assert.Equal(t, "message 10", entries[5].UserMessage)

		require.Len(t, sum.transcripts, 1)
		lines := strings.Split(sum.transcripts[0], "\n")
		assert.Len(t, lines, 10)
		assert.Equal(t, "Alice: message 0", lines[0])
		assert.Equal(t, "EVA: reply 0", lines[1])
		assert.Equal(t, "EVA: reply 4", lines[9])
	})

	t.Run("should keep the buffer bounded and the log complete", func(t *testing.T) {
		log := &recordingLog{}
		c := setupConsolidator(t, log, &fakeSummarizer{summary: "summary"}, 10)

		for i := 0; i < 40; i++ {
			sense, resp := turn(i)
			c.RecordTurn(context.Background(), base.Add(time.Duration(i)*time.Second), sense, resp)
			assert.LessOrEqual(t, c.Len(), 10)
		}
		c.Flush()

		assert.Len(t, log.all(), 40)
	})

	t.Run("should label untagged speakers and skip empty user lines", func(t *testing.T) {
		sum := &fakeSummarizer{summary: "s"}
		c := setupConsolidator(t, &recordingLog{}, sum, MinThreshold)

		c.RecordTurn(context.Background(), base, &schema.Sense{UserMessage: "hello"}, schema.Response{Response: "hi"})
		c.RecordTurn(context.Background(), base.Add(time.Second), nil, schema.Response{Response: "song ready"})
		for i := 2; i < 5; i++ {
			c.RecordTurn(context.Background(), base.Add(time.Duration(i)*time.Second), nil, schema.Response{Response: "anything else?"})
		}

		require.Len(t, sum.transcripts, 1)
		assert.Equal(t, "user: hello\nEVA: hi\nEVA: song ready", sum.transcripts[0])
		assert.Equal(t, 4, c.Len())
	})

	t.Run("should fall back to the transcript when summarization fails", func(t *testing.T) {
		sum := &fakeSummarizer{err: errors.New("model offline")}
		c := setupConsolidator(t, &recordingLog{}, sum, MinThreshold)
		record(c, 5)

		turns := c.Recall()
		require.Len(t, turns, 4)
		assert.Equal(t, schema.ConversationTurn{
			AgentMessage: "Alice: message 0\nEVA: reply 0\nAlice: message 1\nEVA: reply 1",
		}, turns[0])
		assert.True(t, buffered(c)[0].Summary)
	})

	t.Run("should treat an empty summary as a failure", func(t *testing.T) {
		sum := &fakeSummarizer{summary: "  "}
		c := setupConsolidator(t, &recordingLog{}, sum, MinThreshold)
		record(c, 5)

		assert.Contains(t, c.Recall()[0].AgentMessage, "message 0")
	})

	t.Run("should stay bounded at the smallest threshold", func(t *testing.T) {
		sum := &fakeSummarizer{summary: "summary"}
		c := setupConsolidator(t, &recordingLog{}, sum, MinThreshold)

		for i := 0; i < 20; i++ {
			sense, resp := turn(i)
			c.RecordTurn(context.Background(), base.Add(time.Duration(i)*time.Second), sense, resp)
			assert.LessOrEqual(t, c.Len(), MinThreshold, "after turn %d", i)
		}
		// At T=4 each compaction leaves four entries, so every turn from the
		// fifth on compacts again.
		assert.Len(t, sum.transcripts, 16)
		assert.Equal(t, "message 19", buffered(c)[c.Len()-1].UserMessage)
	})
}

func TestRecall(t *testing.T) {
	t.Run("should return nil when empty", func(t *testing.T) {
		c := setupConsolidator(t, &recordingLog{}, &fakeSummarizer{summary: "s"}, 10)
		assert.Nil(t, c.Recall())
	})

	t.Run("should attach premeditation to the last turn only", func(t *testing.T) {
		c := setupConsolidator(t, &recordingLog{}, &fakeSummarizer{summary: "s"}, 10)
		for i := 0; i < 3; i++ {
			sense, resp := turn(i)
			c.RecordTurn(context.Background(), base.Add(time.Duration(i)*time.Second), sense, resp)
		}

		want := []schema.ConversationTurn{
			{SpeakerName: "Alice", UserMessage: "message 0", AgentMessage: "reply 0"},
			{SpeakerName: "Alice", UserMessage: "message 1", AgentMessage: "reply 1"},
			{SpeakerName: "Alice", UserMessage: "message 2", AgentMessage: "reply 2", Premeditation: "plan 2"},
		}
		if diff := cmp.Diff(want, c.Recall()); diff != "" {
			t.Errorf("Recall() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should start with the summary after compaction", func(t *testing.T) {
		c := setupConsolidator(t, &recordingLog{}, &fakeSummarizer{summary: "earlier chat"}, MinThreshold)
		record(c, 5)

		turns := c.Recall()
		require.Len(t, turns, 4)
		assert.Equal(t, schema.ConversationTurn{AgentMessage: "earlier chat"}, turns[0])
		assert.Empty(t, turns[2].Premeditation)
		assert.Equal(t, "plan 4", turns[3].Premeditation)
	})
}

func TestClose(t *testing.T) {
	log := &recordingLog{delay: 10 * time.Millisecond}
	c, err := NewConsolidator(Config{Log: log, Summarizer: &fakeSummarizer{summary: "s"}})
	require.NoError(t, err)

	sense, resp := turn(0)
	c.RecordTurn(context.Background(), base, sense, resp)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Len(t, log.all(), 1)
	assert.True(t, log.closed)
}

func TestSplitSpeaker(t *testing.T) {
	tests := []struct {
		in, speaker, body string
	}{
		{"Alice:: hi", "Alice", "hi"},
		{"Bob:: a:: b", "Bob", "a:: b"},
		{"no tag here", "", "no tag here"},
		{"", "", ""},
	}
	for _, tt := range tests {
		speaker, body := SplitSpeaker(tt.in)
		assert.Equal(t, tt.speaker, speaker, tt.in)
		assert.Equal(t, tt.body, body, tt.in)
	}
}

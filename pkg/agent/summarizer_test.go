package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSummarizer(t *testing.T, provider *fakeProvider) *Summarizer {
	t.Helper()
	s, err := NewSummarizer(SummarizerConfig{
		Provider:  provider,
		Model:     "small",
		Prompts:   testPrompts(),
		AgentName: "EVA",
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return s
}

func TestSummarize(t *testing.T) {
	t.Run("should read the summary field", func(t *testing.T) {
		provider := &fakeProvider{replies: []string{`{"summary":"Alice asked for jazz."}`}}
		s := newTestSummarizer(t, provider)

		got, err := s.Summarize(context.Background(), "Alice: play jazz\nEVA: On it!")
		require.NoError(t, err)
		assert.Equal(t, "Alice asked for jazz.", got)
		assert.Contains(t, provider.lastPrompt(), "Alice: play jazz\nEVA: On it!")
		assert.Equal(t, 0.0, provider.requests[0].Temperature)
	})

	t.Run("should accept plain text", func(t *testing.T) {
		s := newTestSummarizer(t, &fakeProvider{replies: []string{"  Alice asked for jazz.  "}})
		got, err := s.Summarize(context.Background(), "x")
		require.NoError(t, err)
		assert.Equal(t, "Alice asked for jazz.", got)
	})

	t.Run("should fail on an empty summary", func(t *testing.T) {
		s := newTestSummarizer(t, &fakeProvider{replies: []string{`{"summary":""}`}})
		_, err := s.Summarize(context.Background(), "x")
		assert.Error(t, err)
	})

	t.Run("should pass provider errors through", func(t *testing.T) {
		s := newTestSummarizer(t, &fakeProvider{err: errors.New("timeout")})
		_, err := s.Summarize(context.Background(), "x")
		assert.Error(t, err)
	})
}

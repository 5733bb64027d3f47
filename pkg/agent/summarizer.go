package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/eva/pkg/prompt"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// SummarizerConfig holds summarizer configuration
type SummarizerConfig struct {
	Provider    LLMProvider
	Model       string
	Temperature float64
	MaxTokens   int
	Prompts     Prompts
	AgentName   string
	Logger      zerolog.Logger
}

// Summarizer condenses a conversation transcript into a short paragraph.
type Summarizer struct {
	cfg SummarizerConfig
}

// NewSummarizer creates a summarizer.
func NewSummarizer(cfg SummarizerConfig) (*Summarizer, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompts are required")
	}
	if cfg.AgentName == "" {
		cfg.AgentName = "EVA"
	}
	return &Summarizer{cfg: cfg}, nil
}

// Summarize returns the summary of transcript. The model may answer with
// {"summary": ...} or plain text.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	text, err := s.cfg.Prompts.Render(prompt.Summarize, struct {
		AgentName  string
		Transcript string
	}{s.cfg.AgentName, transcript})
	if err != nil {
		return "", err
	}

	out, err := callModel(ctx, s.cfg.Provider, s.cfg.Logger, "summarize", LLMRequest{
		Model:       s.cfg.Model,
		Messages:    []Message{{Role: RoleUser, Content: text}},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(out)
	if raw, err := extractJSON(out); err == nil {
		summary = strings.TrimSpace(gjson.Get(raw, "summary").String())
	}
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return summary, nil
}

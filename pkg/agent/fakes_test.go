package agent

import (
	"context"
	"sync"

	"github.com/harun/eva/pkg/prompt"
	"github.com/rs/zerolog"
)

type fakeProvider struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []LLMRequest
}

func (f *fakeProvider) Provider() string { return "fake" }

func (f *fakeProvider) Call(_ context.Context, req LLMRequest) (*LLMResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	reply := ""
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	return &LLMResponse{Content: reply, Usage: &TokenUsage{InputTokens: 10, OutputTokens: 5}}, nil
}

func (f *fakeProvider) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ""
	}
	msgs := f.requests[len(f.requests)-1].Messages
	return msgs[len(msgs)-1].Content
}

type staticCatalog string

func (c staticCatalog) CatalogJSON() (string, error) { return string(c), nil }

func testPrompts() *prompt.Store {
	return prompt.NewStore("", zerolog.Nop())
}

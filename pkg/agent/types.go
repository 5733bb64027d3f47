package agent

import (
	"time"

	"github.com/harun/eva/pkg/schema"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AuthProfile represents credentials for one provider.
type AuthProfile struct {
	ID       string `json:"id"`
	Provider string `json:"provider"` // anthropic, openai, gemini, ollama
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
}

// RespondRequest is everything a turn is reasoned from.
type RespondRequest struct {
	Time    time.Time
	Sense   *schema.Sense
	History []schema.ConversationTurn
	Results []schema.ActionResult
	// Language overrides the sense language when set.
	Language string
}

func (r RespondRequest) language() string {
	if r.Language != "" {
		return r.Language
	}
	if r.Sense != nil {
		return r.Sense.Language
	}
	return ""
}

package memory

import (
	"strings"
	"time"

	"github.com/harun/eva/pkg/schema"
)

// SpeakerDelimiter separates a speaker tag from the message body, as in
// "Alice:: play some jazz".
const SpeakerDelimiter = ":: "

// Entry is one recorded turn. Entries are never mutated once appended.
type Entry struct {
	Time          time.Time              `json:"time"`
	SpeakerName   string                 `json:"speaker_name,omitempty"`
	UserMessage   string                 `json:"user_message,omitempty"`
	AgentMessage  string                 `json:"agent_message"`
	Observation   string                 `json:"observation,omitempty"`
	Analysis      string                 `json:"analysis,omitempty"`
	Strategy      string                 `json:"strategy,omitempty"`
	Premeditation string                 `json:"premeditation,omitempty"`
	Action        []schema.ActionRequest `json:"action,omitempty"`
	Summary       bool                   `json:"summary,omitempty"`
}

// NewEntry derives an entry from what was sensed and what the agent answered.
func NewEntry(ts time.Time, sense *schema.Sense, resp schema.Response) Entry {
	e := Entry{
		Time:          ts,
		AgentMessage:  resp.Response,
		Analysis:      resp.Analysis,
		Strategy:      resp.Strategy,
		Premeditation: resp.Premeditation,
		Action:        resp.Action,
	}
	if sense != nil {
		e.SpeakerName, e.UserMessage = SplitSpeaker(sense.UserMessage)
		e.Observation = sense.Observation
	}
	return e
}

// SplitSpeaker splits "<speaker>:: <body>" on the first delimiter. Messages
// without a tag come back with an empty speaker.
func SplitSpeaker(msg string) (speaker, body string) {
	if name, rest, ok := strings.Cut(msg, SpeakerDelimiter); ok {
		return strings.TrimSpace(name), rest
	}
	return "", msg
}

func (e Entry) turn() schema.ConversationTurn {
	return schema.ConversationTurn{
		SpeakerName:  e.SpeakerName,
		UserMessage:  e.UserMessage,
		AgentMessage: e.AgentMessage,
	}
}

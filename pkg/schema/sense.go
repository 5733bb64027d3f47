package schema

import "strings"

// Sense is the input captured in one sensing cycle. Empty fields are absent.
type Sense struct {
	UserMessage string `json:"user_message,omitempty"`
	Observation string `json:"observation,omitempty"`
	Language    string `json:"language,omitempty"`
}

// HasMessage reports whether the user said anything.
func (s *Sense) HasMessage() bool {
	return s != nil && strings.TrimSpace(s.UserMessage) != ""
}

// ContainsAny reports whether the message contains any of the keywords,
// case-insensitively.
func (s *Sense) ContainsAny(keywords []string) bool {
	if !s.HasMessage() {
		return false
	}
	msg := strings.ToLower(s.UserMessage)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

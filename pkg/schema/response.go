package schema

// Response is the canonical reasoning output every backend is normalized to.
type Response struct {
	Analysis      string          `json:"analysis"`
	Strategy      string          `json:"strategy"`
	Response      string          `json:"response"`
	Premeditation string          `json:"premeditation"`
	Action        []ActionRequest `json:"action"`
}

// SetupResponse is the reasoning output while onboarding a new user.
type SetupResponse struct {
	Analysis   string  `json:"analysis"`
	Strategy   string  `json:"strategy"`
	Response   string  `json:"response"`
	Name       string  `json:"name,omitempty"`
	Desire     string  `json:"desire,omitempty"`
	Confidence float64 `json:"confidence"`
}

// AsResponse converts a setup answer so it can be recorded like any turn.
func (s SetupResponse) AsResponse() Response {
	return Response{
		Analysis: s.Analysis,
		Strategy: s.Strategy,
		Response: s.Response,
		Action:   []ActionRequest{},
	}
}

// ConversationTurn is the projection of one memory entry handed back to the
// reasoning model as history.
type ConversationTurn struct {
	SpeakerName   string `json:"speaker_name,omitempty"`
	UserMessage   string `json:"user_message,omitempty"`
	AgentMessage  string `json:"agent_message"`
	Premeditation string `json:"premeditation,omitempty"`
}

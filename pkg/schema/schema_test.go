package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenseContainsAny(t *testing.T) {
	keywords := []string{"bye", "exit"}

	tests := []struct {
		name  string
		sense *Sense
		want  bool
	}{
		{"nil sense", nil, false},
		{"empty message", &Sense{}, false},
		{"exact keyword", &Sense{UserMessage: "bye"}, true},
		{"mixed case", &Sense{UserMessage: "OK, Bye now"}, true},
		{"substring", &Sense{UserMessage: "goodbye EVA"}, true},
		{"speaker tag", &Sense{UserMessage: "Alice:: exit please"}, true},
		{"no keyword", &Sense{UserMessage: "play some jazz"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sense.ContainsAny(keywords))
		})
	}
}

func TestActionResultEmpty(t *testing.T) {
	assert.True(t, ActionResult{}.Empty())
	assert.True(t, ActionResult{Result: map[string]any{}}.Empty())
	assert.True(t, ActionResult{Result: ""}.Empty())
	assert.False(t, ActionResult{Result: map[string]any{"title": "x"}}.Empty())
	assert.False(t, ActionResult{Error: "tool not found: x"}.Empty())
	assert.False(t, ActionResult{Additional: "shown"}.Empty())
	assert.False(t, ActionResult{Result: []any{}}.Empty())

	assert.False(t, AnyNonEmpty(nil))
	assert.False(t, AnyNonEmpty([]ActionResult{{}, {Result: map[string]any{}}}))
	assert.True(t, AnyNonEmpty([]ActionResult{{}, {Error: "boom"}}))
}

func TestActionResultJSON(t *testing.T) {
	data, err := json.Marshal(ActionResult{Result: map[string]any{"a": 1}, Additional: "ok"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{"a":1},"additional":"ok"}`, string(data))
}

func TestSetupAsResponse(t *testing.T) {
	r := SetupResponse{Response: "Nice to meet you", Name: "Alice", Confidence: 0.9}.AsResponse()
	assert.Equal(t, "Nice to meet you", r.Response)
	assert.NotNil(t, r.Action)
	assert.Empty(t, r.Action)
}

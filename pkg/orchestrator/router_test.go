package orchestrator

import (
	"testing"

	"github.com/harun/eva/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name string
		from Status
		snap Snapshot
		want Status
	}{
		{"thinking with actions", StatusThinking, Snapshot{PendingActions: 2}, StatusAction},
		{"thinking without actions", StatusThinking, Snapshot{}, StatusWaiting},
		{"thinking fault", StatusThinking, Snapshot{Faulted: true, PendingActions: 1}, StatusError},
		{"action with results", StatusAction, Snapshot{HasResults: true}, StatusThinking},
		{"action without results", StatusAction, Snapshot{}, StatusWaiting},
		{"action fault", StatusAction, Snapshot{Faulted: true, HasResults: true}, StatusError},
		{"waiting exit", StatusWaiting, Snapshot{ExitRequested: true}, StatusEnd},
		{"waiting message", StatusWaiting, Snapshot{}, StatusThinking},
		{"waiting fault", StatusWaiting, Snapshot{Faulted: true, ExitRequested: true}, StatusError},
		{"setup pending", StatusSetup, Snapshot{}, StatusSetup},
		{"setup complete", StatusSetup, Snapshot{SetupComplete: true}, StatusThinking},
		{"setup exit wins", StatusSetup, Snapshot{SetupComplete: true, ExitRequested: true}, StatusEnd},
		{"setup fault", StatusSetup, Snapshot{Faulted: true}, StatusError},
		{"end is terminal", StatusEnd, Snapshot{Faulted: true}, StatusEnd},
		{"error is terminal", StatusError, Snapshot{}, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.from, tt.snap))
		})
	}
}

func TestSnapshot(t *testing.T) {
	keywords := []string{"bye", "exit"}

	t.Run("should detect exit keywords case-insensitively", func(t *testing.T) {
		st := &State{Sense: &schema.Sense{UserMessage: "OK BYE then"}}
		assert.True(t, st.snapshot(keywords).ExitRequested)
	})

	t.Run("should treat a nil message as no exit", func(t *testing.T) {
		st := &State{Sense: &schema.Sense{Observation: "someone waves"}}
		assert.False(t, st.snapshot(keywords).ExitRequested)
		assert.Equal(t, StatusThinking, Route(StatusWaiting, st.snapshot(keywords)))
	})

	t.Run("should treat a closed client as exit", func(t *testing.T) {
		st := &State{ClientClosed: true}
		assert.True(t, st.snapshot(keywords).ExitRequested)
	})

	t.Run("should ignore empty results", func(t *testing.T) {
		st := &State{ActionResults: []schema.ActionResult{{}, {Result: map[string]any{}}}}
		assert.False(t, st.snapshot(keywords).HasResults)

		st.ActionResults = append(st.ActionResults, schema.ActionResult{Error: "tool not found: x"})
		assert.True(t, st.snapshot(keywords).HasResults)
	})

	t.Run("should mark setup complete after both steps", func(t *testing.T) {
		assert.False(t, (&State{SetupStep: 1}).snapshot(keywords).SetupComplete)
		assert.True(t, (&State{SetupStep: setupDone}).snapshot(keywords).SetupComplete)
	})
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusSetup, StatusThinking, StatusWaiting, StatusAction} {
		assert.False(t, s.Terminal(), s)
	}
	assert.True(t, StatusEnd.Terminal())
	assert.True(t, StatusError.Terminal())
}

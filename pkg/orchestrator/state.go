package orchestrator

import (
	"time"

	"github.com/harun/eva/pkg/schema"
)

// Status is the session's position in the state machine.
type Status string

const (
	StatusSetup    Status = "SETUP"
	StatusThinking Status = "THINKING"
	StatusWaiting  Status = "WAITING"
	StatusAction   Status = "ACTION"
	StatusEnd      Status = "END"
	StatusError    Status = "ERROR"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusEnd || s == StatusError
}

func (s Status) String() string {
	return string(s)
}

// setupDone is the SetupStep value once both onboarding steps succeeded.
const setupDone = 2

// State is the mutable record of one session. Only the Engine and the
// handler it is currently running touch it.
type State struct {
	Status            Status
	SessionID         string
	Sense             *schema.Sense
	PendingActions    []schema.ActionRequest
	ActionResults     []schema.ActionResult
	ConversationCount int

	// Language is the language of the latest sense that carried one.
	Language string
	// SetupStep is 0 while asking for the name, 1 for the desire.
	SetupStep int
	UserName  string
	LastTurn  time.Time

	// ClientClosed is set when the device went away while sensing.
	ClientClosed bool
	Fault        error
}

func (s *State) setSense(sense *schema.Sense) {
	s.Sense = sense
	if sense != nil && sense.Language != "" {
		s.Language = sense.Language
	}
}

// Snapshot is the read-only view Route decides on.
type Snapshot struct {
	Faulted        bool
	PendingActions int
	// HasResults is true when at least one action result is not empty.
	HasResults    bool
	ExitRequested bool
	SetupComplete bool
}

func (s *State) snapshot(exitKeywords []string) Snapshot {
	return Snapshot{
		Faulted:        s.Fault != nil,
		PendingActions: len(s.PendingActions),
		HasResults:     schema.AnyNonEmpty(s.ActionResults),
		ExitRequested:  s.ClientClosed || s.Sense.ContainsAny(exitKeywords),
		SetupComplete:  s.SetupStep >= setupDone,
	}
}

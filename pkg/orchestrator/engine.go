package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/eva/internal/observability"
	"github.com/harun/eva/internal/tracing"
	"github.com/harun/eva/pkg/agent"
	"github.com/harun/eva/pkg/client"
	"github.com/harun/eva/pkg/memory"
	"github.com/harun/eva/pkg/schema"
	"github.com/rs/zerolog"
)

// ErrSessionFault wraps the fault that ended a session in ERROR.
var ErrSessionFault = errors.New("session fault")

// Agent reasons the session's turns.
type Agent interface {
	Respond(ctx context.Context, req agent.RespondRequest) (schema.Response, error)
	RespondSetup(ctx context.Context, step int, req agent.RespondRequest) (schema.SetupResponse, error)
	SetToolsEnabled(enabled bool)
}

// Memory is the session's conversation memory.
type Memory interface {
	RecordTurn(ctx context.Context, ts time.Time, sense *schema.Sense, resp schema.Response) memory.Entry
	Recall() []schema.ConversationTurn
	Close() error
}

// Dispatcher runs requested actions.
type Dispatcher interface {
	Dispatch(ctx context.Context, surface client.Surface, requests []schema.ActionRequest) []schema.ActionResult
}

// Users is the registry of known users.
type Users interface {
	IsEmpty() bool
	AddUser(ctx context.Context, name, voiceID, pictureID string) error
}

// Persona receives facts learned during setup.
type Persona interface {
	AppendPersona(line string) error
}

// Ids given to the first registered user.
const (
	FirstVoiceID   = "V00001"
	FirstPictureID = "P00001"
)

// Config holds engine configuration
type Config struct {
	Agent      Agent
	Memory     Memory
	Dispatcher Dispatcher
	Client     client.Client
	Users      Users
	Persona    Persona

	ExitKeywords     []string
	Farewell         string
	ErrorNotice      string
	NameConfidence   float64
	DesireConfidence float64
	// Language is used for replies until a sense carries one.
	Language string

	// Now defaults to time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

type handler func(ctx context.Context, st *State) error

// Engine runs one session.
type Engine struct {
	cfg      Config
	state    State
	handlers map[Status]handler
	logger   zerolog.Logger
}

// New creates an engine. All collaborators are required.
func New(cfg Config) (*Engine, error) {
	observability.EnsureRegistered()

	switch {
	case cfg.Agent == nil:
		return nil, errors.New("agent is required")
	case cfg.Memory == nil:
		return nil, errors.New("memory is required")
	case cfg.Dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	case cfg.Client == nil:
		return nil, errors.New("client is required")
	case cfg.Users == nil:
		return nil, errors.New("user registry is required")
	case cfg.Persona == nil:
		return nil, errors.New("persona store is required")
	}

	if len(cfg.ExitKeywords) == 0 {
		cfg.ExitKeywords = []string{"bye", "exit"}
	}
	if cfg.Farewell == "" {
		cfg.Farewell = "NOW EXITING E.V.A."
	}
	if cfg.ErrorNotice == "" {
		cfg.ErrorNotice = "Something went wrong and I have to stop here."
	}
	if cfg.NameConfidence == 0 {
		cfg.NameConfidence = 0.8
	}
	if cfg.DesireConfidence == 0 {
		cfg.DesireConfidence = 0.7
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Engine{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "orchestrator").Logger(),
	}
	e.handlers = map[Status]handler{
		StatusSetup:    e.setup,
		StatusThinking: e.converse,
		StatusAction:   e.act,
		StatusWaiting:  e.sense,
	}
	return e, nil
}

// State returns a copy of the session state.
func (e *Engine) State() State {
	return e.state
}

// Run drives the session until END or ERROR. It returns nil after END, the
// Initialize error when the session could not start, and an error wrapping
// ErrSessionFault after ERROR.
func (e *Engine) Run(ctx context.Context) error {
	e.state = State{SessionID: tracing.NewSessionID(), Language: e.cfg.Language}
	ctx = tracing.NewSessionContext(ctx, e.state.SessionID)
	logger := tracing.LoggerFromContext(ctx, e.logger)

	observability.SessionStarted()
	defer observability.SessionEnded()

	if err := e.initialize(ctx); err != nil {
		logger.Error().Err(err).Msg("Session failed to start")
		e.shutdown(logger)
		return fmt.Errorf("initialize session: %w", err)
	}
	logger.Info().Str("status", e.state.Status.String()).Msg("Session started")

	for !e.state.Status.Terminal() {
		if ctx.Err() != nil {
			e.transition(logger, StatusEnd)
			break
		}

		from := e.state.Status
		hctx := tracing.WithState(tracing.WithTurn(ctx, e.state.ConversationCount), from.String())
		if err := e.handlers[from](hctx, &e.state); err != nil {
			if ctx.Err() != nil {
				e.transition(logger, StatusEnd)
				break
			}
			e.state.Fault = err
		}
		e.transition(logger, Route(from, e.state.snapshot(e.cfg.ExitKeywords)))
	}

	// Terminal handlers still talk to the client after cancellation.
	ctx = context.WithoutCancel(ctx)
	if e.state.Status == StatusError {
		e.fail(ctx, logger)
		return fmt.Errorf("%w: %w", ErrSessionFault, e.state.Fault)
	}
	e.end(ctx, logger)
	return nil
}

func (e *Engine) initialize(ctx context.Context) error {
	sense, err := e.cfg.Client.Start(ctx)
	if err != nil {
		return fmt.Errorf("start client: %w", err)
	}
	e.state.setSense(sense)

	if e.cfg.Users.IsEmpty() {
		e.state.Status = StatusSetup
	} else {
		e.state.Status = StatusThinking
	}
	return nil
}

func (e *Engine) transition(logger zerolog.Logger, to Status) {
	from := e.state.Status
	e.state.Status = to
	observability.RecordTransition(from.String(), to.String())
	logger.Debug().Str("from", from.String()).Str("to", to.String()).Int("turn", e.state.ConversationCount).Msg("State transition")
}

// shutdown releases the client and memory, logging failures.
func (e *Engine) shutdown(logger zerolog.Logger) {
	if err := e.cfg.Client.Deactivate(); err != nil {
		logger.Warn().Err(err).Msg("Failed to deactivate client")
	}
	if err := e.cfg.Memory.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close memory")
	}
}

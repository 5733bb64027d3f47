package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/eva/internal/observability"
	"github.com/harun/eva/internal/tracing"
	"github.com/harun/eva/pkg/agent"
	"github.com/harun/eva/pkg/client"
	"github.com/rs/zerolog"
)

// converse reasons one turn, records it and sends the reply.
func (e *Engine) converse(ctx context.Context, st *State) error {
	ts := e.cfg.Now()
	resp, err := e.cfg.Agent.Respond(ctx, agent.RespondRequest{
		Time:     ts,
		Sense:    st.Sense,
		History:  e.cfg.Memory.Recall(),
		Results:  st.ActionResults,
		Language: st.Language,
	})
	if err != nil {
		return fmt.Errorf("converse: %w", err)
	}

	e.cfg.Memory.RecordTurn(ctx, ts, st.Sense, resp)
	st.LastTurn = ts

	payload := client.Payload{Speech: resp.Response, Language: st.Language, Wait: len(resp.Action) == 0}
	if err := e.cfg.Client.Send(ctx, payload); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	st.PendingActions = resp.Action
	return nil
}

// act dispatches the pending actions and keeps their results.
func (e *Engine) act(ctx context.Context, st *State) error {
	results := e.cfg.Dispatcher.Dispatch(ctx, client.SurfaceOf(e.cfg.Client), st.PendingActions)

	st.ActionResults = results
	st.PendingActions = nil
	st.Sense = nil
	return nil
}

// sense hands the turn to the user and waits for their input.
func (e *Engine) sense(ctx context.Context, st *State) error {
	return e.receive(ctx, st)
}

// receive signals over, blocks for the next input and counts the cycle.
func (e *Engine) receive(ctx context.Context, st *State) error {
	if err := e.cfg.Client.SendOver(ctx); err != nil {
		return fmt.Errorf("signal over: %w", err)
	}

	sense, err := e.cfg.Client.Receive(ctx)
	if errors.Is(err, client.ErrClientClosed) {
		st.ClientClosed = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("receive input: %w", err)
	}

	st.ConversationCount++
	observability.RecordConversation()
	st.ActionResults = nil
	st.setSense(sense)
	return nil
}

// setup runs one onboarding step with tools disabled: learn the user's name,
// then what they want most.
func (e *Engine) setup(ctx context.Context, st *State) error {
	logger := tracing.LoggerFromContext(ctx, e.logger)
	e.cfg.Agent.SetToolsEnabled(false)

	ts := e.cfg.Now()
	resp, err := e.cfg.Agent.RespondSetup(ctx, st.SetupStep, agent.RespondRequest{
		Time:     ts,
		Sense:    st.Sense,
		History:  e.cfg.Memory.Recall(),
		Language: st.Language,
	})
	if err != nil {
		return fmt.Errorf("setup step %d: %w", st.SetupStep, err)
	}

	e.cfg.Memory.RecordTurn(ctx, ts, st.Sense, resp.AsResponse())
	st.LastTurn = ts

	if err := e.cfg.Client.Send(ctx, client.Payload{Speech: resp.Response, Language: st.Language, Wait: true}); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	switch st.SetupStep {
	case 0:
		if resp.Name != "" && resp.Confidence >= e.cfg.NameConfidence {
			if err := e.cfg.Users.AddUser(ctx, resp.Name, FirstVoiceID, FirstPictureID); err != nil {
				return fmt.Errorf("register user: %w", err)
			}
			st.UserName = resp.Name
			st.SetupStep = 1
			logger.Info().Str("user", resp.Name).Msg("User registered")
		}
	case 1:
		if resp.Desire != "" && resp.Confidence >= e.cfg.DesireConfidence {
			goal := fmt.Sprintf("My most important goal is to help %s to achieve %s.", st.UserName, resp.Desire)
			if err := e.cfg.Persona.AppendPersona(goal); err != nil {
				return fmt.Errorf("update persona: %w", err)
			}
			st.SetupStep = setupDone
			e.cfg.Agent.SetToolsEnabled(true)
			logger.Info().Str("user", st.UserName).Msg("Setup complete")
		}
	}

	return e.receive(ctx, st)
}

// end says goodbye and releases the session.
func (e *Engine) end(ctx context.Context, logger zerolog.Logger) {
	if err := e.cfg.Client.Speak(ctx, e.cfg.Farewell, true); err != nil {
		logger.Warn().Err(err).Msg("Failed to speak farewell")
	}
	logger.Info().Int("conversations", e.state.ConversationCount).Msg("Session ended")
	e.shutdown(logger)
}

// fail reports the fault to the user and releases the session.
func (e *Engine) fail(ctx context.Context, logger zerolog.Logger) {
	logger.Error().Err(e.state.Fault).Int("conversations", e.state.ConversationCount).Msg("Session failed")
	if err := e.cfg.Client.Speak(ctx, e.cfg.ErrorNotice+" "+e.cfg.Farewell, true); err != nil {
		logger.Warn().Err(err).Msg("Failed to speak error notice")
	}
	e.shutdown(logger)
}

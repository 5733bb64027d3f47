package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/harun/eva/internal/observability"
	"github.com/harun/eva/internal/tracing"
	"github.com/harun/eva/pkg/prompt"
	"github.com/harun/eva/pkg/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Prompts supplies prompt templates by name.
type Prompts interface {
	Load(name string) (string, error)
	Render(name string, data any) (string, error)
}

// Catalog describes the tools the model may request.
type Catalog interface {
	CatalogJSON() (string, error)
}

// ChatConfig holds chat agent configuration
type ChatConfig struct {
	Provider    LLMProvider
	Model       string
	Temperature float64
	MaxTokens   int
	Prompts     Prompts
	// Tools may be nil when no tool is registered.
	Tools Catalog
	// BaseLanguage is used when a sense carries no supported language.
	BaseLanguage string
	Logger       zerolog.Logger
}

// ChatAgent produces the agent's turn from the session context.
type ChatAgent struct {
	provider     LLMProvider
	model        string
	temperature  float64
	maxTokens    int
	prompts      Prompts
	tools        Catalog
	baseLanguage string
	logger       zerolog.Logger

	toolsEnabled atomic.Bool
}

// NewChatAgent creates a chat agent with tools enabled.
func NewChatAgent(cfg ChatConfig) (*ChatAgent, error) {
	observability.EnsureRegistered()

	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompts are required")
	}

	a := &ChatAgent{
		provider:     cfg.Provider,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		prompts:      cfg.Prompts,
		tools:        cfg.Tools,
		baseLanguage: cfg.BaseLanguage,
		logger:       cfg.Logger,
	}
	a.toolsEnabled.Store(true)
	return a, nil
}

// SetToolsEnabled controls whether the tool catalog is offered to the model.
func (a *ChatAgent) SetToolsEnabled(enabled bool) {
	a.toolsEnabled.Store(enabled)
}

// ToolsEnabled reports whether tools are offered.
func (a *ChatAgent) ToolsEnabled() bool {
	return a.toolsEnabled.Load()
}

// Respond reasons one conversational turn.
func (a *ChatAgent) Respond(ctx context.Context, req RespondRequest) (schema.Response, error) {
	lang := responseLanguage(req.language(), a.baseLanguage)
	text, err := a.prompt(req, prompt.Instructions, formatInstructions(converseFields(lang)))
	if err != nil {
		return schema.Response{}, err
	}

	out, err := a.call(ctx, "converse", text)
	if err != nil {
		return schema.Response{}, err
	}

	resp, err := Normalize(out)
	if err != nil {
		return schema.Response{}, fmt.Errorf("parse model response: %w", err)
	}
	if !a.ToolsEnabled() {
		resp.Action = []schema.ActionRequest{}
	}
	return resp, nil
}

// RespondSetup reasons one onboarding turn. Step 0 asks for the user's name,
// step 1 for their desire.
func (a *ChatAgent) RespondSetup(ctx context.Context, step int, req RespondRequest) (schema.SetupResponse, error) {
	if step < 0 || step > 1 {
		return schema.SetupResponse{}, fmt.Errorf("invalid setup step %d", step)
	}
	name := prompt.SetupName
	if step == 1 {
		name = prompt.SetupDesire
	}

	lang := responseLanguage(req.language(), a.baseLanguage)
	text, err := a.prompt(req, name, formatInstructions(setupFields(step, lang)))
	if err != nil {
		return schema.SetupResponse{}, err
	}

	out, err := a.call(ctx, "setup", text)
	if err != nil {
		return schema.SetupResponse{}, err
	}

	resp, err := NormalizeSetup(out)
	if err != nil {
		return schema.SetupResponse{}, fmt.Errorf("parse setup response: %w", err)
	}
	return resp, nil
}

func (a *ChatAgent) prompt(req RespondRequest, instructions, format string) (string, error) {
	persona, err := a.prompts.Load(prompt.Persona)
	if err != nil {
		return "", fmt.Errorf("load persona: %w", err)
	}
	steps, err := a.prompts.Load(instructions)
	if err != nil {
		return "", fmt.Errorf("load instructions: %w", err)
	}

	tools := "[]"
	if a.ToolsEnabled() && a.tools != nil {
		if tools, err = a.tools.CatalogJSON(); err != nil {
			return "", fmt.Errorf("encode tool catalog: %w", err)
		}
	}

	ts := req.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return buildPrompt(promptParts{
		persona:      persona,
		tools:        tools,
		instructions: steps,
		format:       format,
		time:         ts,
		sense:        req.Sense,
		history:      req.History,
		results:      req.Results,
	}), nil
}

func (a *ChatAgent) call(ctx context.Context, purpose, text string) (string, error) {
	return callModel(ctx, a.provider, a.logger, purpose, LLMRequest{
		Model:       a.model,
		Messages:    []Message{{Role: RoleUser, Content: text}},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
		JSON:        true,
	})
}

// callModel wraps one provider call with a span, metrics and logging.
func callModel(ctx context.Context, provider LLMProvider, logger zerolog.Logger, purpose string, req LLMRequest) (string, error) {
	ctx, span := tracing.StartSpan(ctx, tracing.TracerAgent, "agent."+purpose,
		attribute.String("provider", provider.Provider()),
		attribute.String("model", req.Model))
	logger = tracing.LoggerFromContext(ctx, logger)
	start := time.Now()

	resp, err := provider.Call(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("provider returned no response")
	}
	observability.RecordReasoning(provider.Provider(), purpose, time.Since(start), err == nil)
	tracing.EndSpan(span, err)

	if err != nil {
		logger.Error().Err(err).Str("provider", provider.Provider()).Str("purpose", purpose).Msg("Reasoning call failed")
		return "", fmt.Errorf("%s call to %s failed: %w", purpose, provider.Provider(), err)
	}

	ev := logger.Debug().Str("provider", provider.Provider()).Str("purpose", purpose).Dur("duration", time.Since(start))
	if resp.Usage != nil {
		ev = ev.Int("input_tokens", resp.Usage.InputTokens).Int("output_tokens", resp.Usage.OutputTokens)
	}
	ev.Msg("Reasoning call completed")
	return resp.Content, nil
}

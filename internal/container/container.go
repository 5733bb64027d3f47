// Package container wires the session collaborators from Config using
// go.uber.org/dig. Constructors run lazily: asking for the tool registry
// does not dial a model provider.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/harun/eva/internal/config"
	"github.com/harun/eva/pkg/actions"
	"github.com/harun/eva/pkg/agent"
	"github.com/harun/eva/pkg/client"
	"github.com/harun/eva/pkg/identity"
	"github.com/harun/eva/pkg/memory"
	"github.com/harun/eva/pkg/orchestrator"
	"github.com/harun/eva/pkg/prompt"
	"github.com/harun/eva/pkg/tools"
	"github.com/rs/zerolog"
	"go.uber.org/dig"
)

// Options carries what the configuration file cannot.
type Options struct {
	// In and Out back the console device; they default to stdin and stdout.
	In     io.Reader
	Out    io.Writer
	Logger zerolog.Logger
	// Providers creates reasoning backends; defaults to agent.ProviderFactory.
	Providers agent.ProviderCreator
}

// Container resolves collaborators on demand. Callers use the typed getters;
// they never import dig.
type Container struct {
	d   *dig.Container
	ctx context.Context

	mu      sync.Mutex
	closers []func() error
}

// chatProvider and summarizeProvider let dig tell the two model roles apart.
type chatProvider struct{ agent.LLMProvider }

type summarizeProvider struct{ agent.LLMProvider }

type chatModel string

type summarizeModel string

// New registers every constructor. Nothing is built until a getter asks.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Providers == nil {
		opts.Providers = &agent.ProviderFactory{}
	}

	c := &Container{d: dig.New(), ctx: ctx}
	providers := []any{
		func() *config.Config { return cfg },
		func() Options { return opts },
		func() zerolog.Logger { return opts.Logger },
		c.newChatProvider,
		c.newSummarizeProvider,
		c.newPrompts,
		newRegistry,
		newDispatcher,
		newChatAgent,
		newSummarizer,
		c.newDurableLog,
		newConsolidator,
		c.newUsers,
		newClient,
		newEngine,
	}
	for _, p := range providers {
		if err := c.d.Provide(p); err != nil {
			return nil, fmt.Errorf("register constructor: %w", err)
		}
	}
	return c, nil
}

// Engine builds the full session engine.
func (c *Container) Engine() (*orchestrator.Engine, error) {
	var e *orchestrator.Engine
	err := c.d.Invoke(func(engine *orchestrator.Engine) { e = engine })
	return e, unwrap(err)
}

// Registry returns the tool registry for the configured device.
func (c *Container) Registry() (*actions.Registry, error) {
	var r *actions.Registry
	err := c.d.Invoke(func(reg *actions.Registry) { r = reg })
	return r, unwrap(err)
}

// Users returns the user registry.
func (c *Container) Users() (*identity.Registry, error) {
	var u *identity.Registry
	err := c.d.Invoke(func(users *identity.Registry) { u = users })
	return u, unwrap(err)
}

// DurableLog returns the configured conversation log.
func (c *Container) DurableLog() (memory.DurableLog, error) {
	var l memory.DurableLog
	err := c.d.Invoke(func(log memory.DurableLog) { l = log })
	return l, unwrap(err)
}

// Close releases what the built collaborators hold, newest first.
func (c *Container) Close() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Container) onClose(fn func() error) {
	c.mu.Lock()
	c.closers = append(c.closers, fn)
	c.mu.Unlock()
}

// unwrap strips dig's constructor chain so callers see the root cause.
func unwrap(err error) error {
	if err == nil {
		return nil
	}
	return dig.RootCause(err)
}

func (c *Container) newChatProvider(cfg *config.Config, opts Options) (chatProvider, chatModel, error) {
	p, model, err := resolveProvider(cfg, opts.Providers, cfg.Agent.ChatModel)
	if err != nil {
		return chatProvider{}, "", fmt.Errorf("chat model: %w", err)
	}
	return chatProvider{p}, chatModel(model), nil
}

func (c *Container) newSummarizeProvider(cfg *config.Config, opts Options) (summarizeProvider, summarizeModel, error) {
	ref := cfg.Agent.SummarizeModel
	if ref == "" {
		ref = cfg.Agent.ChatModel
	}
	p, model, err := resolveProvider(cfg, opts.Providers, ref)
	if err != nil {
		return summarizeProvider{}, "", fmt.Errorf("summarize model: %w", err)
	}
	return summarizeProvider{p}, summarizeModel(model), nil
}

// resolveProvider turns "<provider>:<model>" into a backend using the
// highest priority profile of that provider. Ollama needs no profile.
func resolveProvider(cfg *config.Config, creator agent.ProviderCreator, ref string) (agent.LLMProvider, string, error) {
	name, model, err := config.ParseModelRef(ref)
	if err != nil {
		return nil, "", err
	}

	profile, ok := cfg.Profile(name)
	if !ok && name != agent.ProviderOllama {
		return nil, "", fmt.Errorf("no AI profile configured for provider %s", name)
	}

	p, err := creator.NewProvider(agent.AuthProfile{
		ID:       profile.ID,
		Provider: name,
		APIKey:   profile.APIKey,
		BaseURL:  profile.BaseURL,
	})
	if err != nil {
		return nil, "", err
	}
	return p, model, nil
}

func (c *Container) newPrompts(cfg *config.Config, logger zerolog.Logger) *prompt.Store {
	store := prompt.NewStore(cfg.Agent.PromptsDir, logger.With().Str("component", "prompt").Logger())
	if err := store.Watch(); err != nil {
		logger.Warn().Err(err).Msg("Prompt hot reload disabled")
	}
	c.onClose(store.Close)
	return store
}

func newRegistry(cfg *config.Config, logger zerolog.Logger) (*actions.Registry, error) {
	reg := actions.NewRegistry()
	names, err := reg.RegisterFor(cfg.Device, cfg.Actions.Enabled, tools.Builtins(cfg.Actions, logger)...)
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	logger.Debug().Strs("tools", names).Str("device", cfg.Device).Msg("Tools registered")
	return reg, nil
}

func newDispatcher(cfg *config.Config, reg *actions.Registry, logger zerolog.Logger) *actions.Dispatcher {
	return actions.NewDispatcher(reg, actions.DispatcherConfig{
		MaxParallel: cfg.Actions.MaxParallel,
		Timeout:     time.Duration(cfg.Actions.TimeoutSeconds) * time.Second,
		Logger:      logger.With().Str("component", "actions").Logger(),
	})
}

func newChatAgent(cfg *config.Config, p chatProvider, model chatModel, store *prompt.Store, reg *actions.Registry, logger zerolog.Logger) (*agent.ChatAgent, error) {
	var catalog agent.Catalog
	if reg.Len() > 0 {
		catalog = reg
	}
	return agent.NewChatAgent(agent.ChatConfig{
		Provider:     p.LLMProvider,
		Model:        string(model),
		Temperature:  cfg.Agent.Temperature,
		MaxTokens:    cfg.Agent.MaxTokens,
		Prompts:      store,
		Tools:        catalog,
		BaseLanguage: cfg.Language,
		Logger:       logger.With().Str("component", "agent").Logger(),
	})
}

func newSummarizer(cfg *config.Config, p summarizeProvider, model summarizeModel, store *prompt.Store, logger zerolog.Logger) (*agent.Summarizer, error) {
	return agent.NewSummarizer(agent.SummarizerConfig{
		Provider:    p.LLMProvider,
		Model:       string(model),
		Temperature: cfg.Agent.SummarizeTemperature,
		MaxTokens:   cfg.Agent.MaxTokens,
		Prompts:     store,
		AgentName:   cfg.Agent.Name,
		Logger:      logger.With().Str("component", "summarizer").Logger(),
	})
}

// newDurableLog opens the configured log. Closing is idempotent, so the
// container closes it even when the consolidator already has.
func (c *Container) newDurableLog(cfg *config.Config, logger zerolog.Logger) (memory.DurableLog, error) {
	logger = logger.With().Str("component", "memory").Logger()

	var (
		log memory.DurableLog
		err error
	)
	switch cfg.Memory.Backend {
	case config.BackendJSONL:
		log, err = memory.OpenJSONLLog(cfg.Memory.JSONLDir, logger)
	case config.BackendSQLite, "":
		log, err = memory.OpenSQLiteLog(cfg.Memory.DBPath, logger)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
	if err != nil {
		return nil, err
	}
	c.onClose(log.Close)
	return log, nil
}

// newConsolidator builds the session memory; the engine closes it when the
// session ends.
func newConsolidator(cfg *config.Config, log memory.DurableLog, s *agent.Summarizer, logger zerolog.Logger) (*memory.Consolidator, error) {
	return memory.NewConsolidator(memory.Config{
		Log:        log,
		Summarizer: s,
		Threshold:  cfg.Memory.Threshold,
		AgentName:  cfg.Agent.Name,
		Logger:     logger.With().Str("component", "memory").Logger(),
	})
}

// UsersPath is the user registry database, kept beside the memory database.
func UsersPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Memory.DBPath), "users.db")
}

func (c *Container) newUsers(cfg *config.Config, logger zerolog.Logger) (*identity.Registry, error) {
	users, err := identity.Open(c.ctx, UsersPath(cfg), logger.With().Str("component", "identity").Logger())
	if err != nil {
		return nil, err
	}
	c.onClose(users.Close)
	return users, nil
}

func newClient(cfg *config.Config, opts Options, logger zerolog.Logger) (client.Client, error) {
	switch cfg.Device {
	case config.DeviceMobile:
		return client.NewGateway(client.GatewayConfig{
			Addr:     net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port)),
			Language: cfg.Language,
			Logger:   logger.With().Str("component", "gateway").Logger(),
		}), nil
	case config.DeviceDesktop, "":
		return client.NewConsole(client.ConsoleConfig{
			In:       opts.In,
			Out:      opts.Out,
			Name:     cfg.Agent.Name,
			Language: cfg.Language,
			Logger:   logger.With().Str("component", "console").Logger(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown device %q", cfg.Device)
	}
}

func newEngine(
	cfg *config.Config,
	chat *agent.ChatAgent,
	mem *memory.Consolidator,
	dispatcher *actions.Dispatcher,
	device client.Client,
	users *identity.Registry,
	store *prompt.Store,
	logger zerolog.Logger,
) (*orchestrator.Engine, error) {
	return orchestrator.New(orchestrator.Config{
		Agent:            chat,
		Memory:           mem,
		Dispatcher:       dispatcher,
		Client:           device,
		Users:            users,
		Persona:          store,
		ExitKeywords:     cfg.Session.ExitKeywords,
		Farewell:         cfg.Session.Farewell,
		ErrorNotice:      cfg.Session.ErrorNotice,
		NameConfidence:   cfg.Session.NameConfidence,
		DesireConfidence: cfg.Session.DesireConfidence,
		Language:         cfg.Language,
		Logger:           logger,
	})
}

package actions

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/harun/eva/internal/observability"
	"github.com/harun/eva/internal/tracing"
	"github.com/harun/eva/pkg/client"
	"github.com/harun/eva/pkg/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	// MaxParallel bounds concurrent tool calls; 0 means runtime.NumCPU().
	MaxParallel int
	// Timeout bounds a single tool call.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Dispatcher fans a turn's action requests out to the registry.
type Dispatcher struct {
	registry *Registry
	limit    int
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, cfg DispatcherConfig) *Dispatcher {
	observability.EnsureRegistered()

	limit := cfg.MaxParallel
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Dispatcher{
		registry: reg,
		limit:    limit,
		timeout:  timeout,
		logger:   cfg.Logger,
	}
}

// Registry returns the tool registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs every request concurrently and returns one result per
// request in request order. It blocks until all calls have finished.
func (d *Dispatcher) Dispatch(ctx context.Context, surface client.Surface, requests []schema.ActionRequest) []schema.ActionResult {
	results := make([]schema.ActionResult, len(requests))
	if len(requests) == 0 {
		return results
	}

	ctx, span := tracing.StartSpan(ctx, tracing.TracerActions, "actions.dispatch",
		attribute.Int("requests", len(requests)))
	defer span.End()
	observability.RecordDispatch(len(requests))

	var g errgroup.Group
	g.SetLimit(d.limit)

	for i, req := range requests {
		g.Go(func() error {
			results[i] = d.run(ctx, surface, req)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) run(ctx context.Context, surface client.Surface, req schema.ActionRequest) (res schema.ActionResult) {
	logger := d.logger.With().Str("tool", req.Name).Logger()
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			res = schema.ActionResult{Error: fmt.Sprintf("tool %s panicked: %v", req.Name, p)}
		}
		observability.RecordToolExecution(req.Name, time.Since(start), res.Error == "")
		if res.Error != "" {
			logger.Warn().Str("error", res.Error).Dur("duration", time.Since(start)).Msg("Action failed")
			return
		}
		logger.Debug().Dur("duration", time.Since(start)).Msg("Action completed")
	}()

	tool, ok := d.registry.Get(req.Name)
	if !ok {
		return schema.ActionResult{Error: fmt.Sprintf("%v: %s", ErrToolNotFound, req.Name)}
	}

	out, err := d.registry.Execute(ctx, req.Name, req.Args, d.timeout)
	if err != nil {
		return schema.ActionResult{Error: err.Error()}
	}

	res = schema.ActionResult{Result: out}
	if tool.OnClient != nil && surface != nil {
		if extra := d.runClient(ctx, tool, surface, out, logger); extra != nil {
			res.Additional = extra
		}
	}
	return res
}

// runClient isolates the client side effect: its failure or panic is logged
// and leaves the primary result intact.
func (d *Dispatcher) runClient(ctx context.Context, tool Tool, surface client.Surface, out map[string]any, logger zerolog.Logger) (extra any) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Msg("Client hook panicked")
			extra = nil
		}
	}()

	extra, err := tool.OnClient(ctx, surface, out)
	if err != nil {
		logger.Warn().Err(err).Msg("Client hook failed")
		return nil
	}
	return extra
}

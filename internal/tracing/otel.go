package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names used across the module.
const (
	TracerEngine  = "eva/orchestrator"
	TracerAgent   = "eva/agent"
	TracerActions = "eva/actions"
	TracerMemory  = "eva/memory"
)

var (
	providerOnce sync.Once
	providerMu   sync.RWMutex
	provider     *sdktrace.TracerProvider
	providerErr  error
)

// Options configures the process tracer provider.
type Options struct {
	ServiceName    string
	ServiceVersion string
	// SampleRatio is the share of root sessions traced; <= 0 or > 1 means all.
	SampleRatio float64
}

// InitOpenTelemetry installs a process-wide tracer provider. Only the first
// call has effect; later calls return its error.
func InitOpenTelemetry(opts Options) error {
	providerOnce.Do(func() {
		if opts.ServiceName == "" {
			opts.ServiceName = "eva"
		}
		ratio := opts.SampleRatio
		if ratio <= 0 || ratio > 1 {
			ratio = 1
		}

		attrs := []attribute.KeyValue{semconv.ServiceName(opts.ServiceName)}
		if opts.ServiceVersion != "" {
			attrs = append(attrs, semconv.ServiceVersion(opts.ServiceVersion))
		}
		res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
		if err != nil {
			providerErr = fmt.Errorf("build trace resource: %w", err)
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			sdktrace.WithResource(res),
		)
		providerMu.Lock()
		provider = tp
		providerMu.Unlock()
		otel.SetTracerProvider(tp)
	})
	return providerErr
}

// ShutdownOpenTelemetry flushes pending spans. A no-op before InitOpenTelemetry.
func ShutdownOpenTelemetry(ctx context.Context) error {
	providerMu.RLock()
	tp := provider
	providerMu.RUnlock()
	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}

// StartSpan starts a span tagged with the session id and turn found in ctx.
// Without InitOpenTelemetry the global no-op provider is used.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	if id := GetSessionID(ctx); id != "" {
		attrs = append(attrs, attribute.String("eva.session_id", id))
	}
	if turn := GetTurn(ctx); turn >= 0 {
		attrs = append(attrs, attribute.Int("eva.turn", turn))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}

// EndSpan records err on span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

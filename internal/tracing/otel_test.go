package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	ctx := WithTurn(WithSessionID(context.Background(), "sess-9"), 4)
	ctx, span := StartSpan(ctx, TracerEngine, "converse", attribute.String("state", "THINKING"))
	assert.NotEmpty(t, GetTraceID(ctx), "span trace id is propagated when none is set")
	EndSpan(span, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "converse", got.Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range got.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "sess-9", attrs["eva.session_id"].AsString())
	assert.Equal(t, int64(4), attrs["eva.turn"].AsInt64())
	assert.Equal(t, "THINKING", attrs["state"].AsString())
	require.Len(t, got.Events(), 1, "error recorded as an event")
}

func TestStartSpanKeepsTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-fixed")
	ctx, span := StartSpan(ctx, TracerAgent, "respond")
	defer EndSpan(span, nil)
	assert.Equal(t, "trace-fixed", GetTraceID(ctx))
}

func TestShutdownWithoutProvider(t *testing.T) {
	providerMu.RLock()
	installed := provider != nil
	providerMu.RUnlock()
	if installed {
		t.Skip("provider installed by another test")
	}
	assert.NoError(t, ShutdownOpenTelemetry(context.Background()))
}

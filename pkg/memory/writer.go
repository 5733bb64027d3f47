package memory

import (
	"context"
	"sync"
	"time"

	"github.com/harun/eva/internal/observability"
	"github.com/harun/eva/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// slotWriter runs at most one durable write at a time. Submit waits for the
// previous write before starting the next one, so writes land in call order.
type slotWriter struct {
	log    DurableLog
	logger zerolog.Logger

	mu      sync.Mutex
	pending chan struct{}
}

func newSlotWriter(log DurableLog, logger zerolog.Logger) *slotWriter {
	return &slotWriter{log: log, logger: logger}
}

// Submit joins the in-flight write, then starts writing e in the background.
// The write is detached from ctx cancellation so a stopping session still
// persists its last turn.
func (w *slotWriter) Submit(ctx context.Context, e Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.joinLocked()

	done := make(chan struct{})
	w.pending = done
	wctx := context.WithoutCancel(ctx)

	go func() {
		defer close(done)

		wctx, span := tracing.StartSpan(wctx, tracing.TracerMemory, "memory.append",
			attribute.String("time", e.Time.Format(time.RFC3339)))
		start := time.Now()
		err := w.log.AppendEntry(wctx, e)
		observability.RecordMemoryWrite(time.Since(start), err == nil)
		tracing.EndSpan(span, err)

		if err != nil {
			w.logger.Error().Err(err).Time("entry_time", e.Time).Msg("Failed to persist memory entry")
			return
		}
		w.logger.Debug().Time("entry_time", e.Time).Msg("Memory entry persisted")
	}()
}

// Wait blocks until the in-flight write, if any, has finished.
func (w *slotWriter) Wait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.joinLocked()
}

func (w *slotWriter) joinLocked() {
	if w.pending != nil {
		<-w.pending
		w.pending = nil
	}
}

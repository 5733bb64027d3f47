package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// SessionIDKey identifies one run of the session engine.
	SessionIDKey ContextKey = "session_id"
	// TurnKey is the conversation count at the time of the call.
	TurnKey ContextKey = "turn"
	// StateKey is the session status the handler runs under.
	StateKey ContextKey = "state"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	SessionID string
	Turn      int
	State     string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewSessionID generates a new session ID
func NewSessionID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithSessionID adds a session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithTurn records the current conversation count.
func WithTurn(ctx context.Context, turn int) context.Context {
	return context.WithValue(ctx, TurnKey, turn)
}

// WithState records the session status a handler runs under.
func WithState(ctx context.Context, state string) context.Context {
	return context.WithValue(ctx, StateKey, state)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// GetSessionID retrieves the session ID from the context
func GetSessionID(ctx context.Context) string {
	if v, ok := ctx.Value(SessionIDKey).(string); ok {
		return v
	}
	return ""
}

// GetTurn returns the turn number, or -1 when unset.
func GetTurn(ctx context.Context) int {
	if v, ok := ctx.Value(TurnKey).(int); ok {
		return v
	}
	return -1
}

// GetState retrieves the handler state from the context
func GetState(ctx context.Context) string {
	if v, ok := ctx.Value(StateKey).(string); ok {
		return v
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		SessionID: GetSessionID(ctx),
		Turn:      GetTurn(ctx),
		State:     GetState(ctx),
	}
}

// NewSessionContext starts a fresh trace for a session.
func NewSessionContext(ctx context.Context, sessionID string) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	return WithSessionID(ctx, sessionID)
}

// LoggerFromContext adds the tracing fields present in ctx to logger.
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)
	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.SessionID != "" {
		lc = lc.Str("session_id", tc.SessionID)
	}
	if tc.Turn >= 0 {
		lc = lc.Int("turn", tc.Turn)
	}
	if tc.State != "" {
		lc = lc.Str("state", tc.State)
	}
	return lc.Logger()
}

package context

import (
	stdcontext "context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Baggage keys understood by the gateway adapters.
const (
	BaggageRequestURI = "request_uri"
	BaggageRemoteAddr = "remote_addr"
)

// TraceContext carries only cross-cutting concerns needed for observability.
type TraceContext struct {
	TraceID string            // Globally unique ID for logs and spans
	SpanID  string            // Current span identifier
	Baggage map[string]string // Optional key-value flags (e.g., correlation data)

	stdCtx stdcontext.Context
}

// NewTraceContext creates a TraceContext bound to parent. When parent already
// carries a valid OpenTelemetry span its IDs are reused so logs and spans line up.
func NewTraceContext(parent stdcontext.Context) TraceContext {
	if parent == nil {
		parent = stdcontext.Background()
	}
	tc := TraceContext{
		TraceID: uuid.NewString(),
		SpanID:  uuid.NewString(),
		Baggage: make(map[string]string),
		stdCtx:  parent,
	}
	if sc := trace.SpanContextFromContext(parent); sc.IsValid() {
		tc.TraceID = sc.TraceID().String()
		tc.SpanID = sc.SpanID().String()
	}
	return tc
}

// Context returns the standard library context the trace is bound to.
func (tc TraceContext) Context() stdcontext.Context {
	if tc.stdCtx == nil {
		return stdcontext.Background()
	}
	return tc.stdCtx
}

// WithContext returns a copy bound to ctx, typically one carrying a child span.
// The span ID is refreshed from ctx when it holds a valid span.
func (tc TraceContext) WithContext(ctx stdcontext.Context) TraceContext {
	tc.stdCtx = ctx
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		tc.SpanID = sc.SpanID().String()
	}
	return tc
}

// NewSpan generates a new SpanID for a child operation within the same trace.
func (tc *TraceContext) NewSpan() string {
	tc.SpanID = uuid.NewString()
	return tc.SpanID
}

// Get returns a baggage value or "" when unset.
func (tc TraceContext) Get(key string) string {
	if tc.Baggage == nil {
		return ""
	}
	return tc.Baggage[key]
}

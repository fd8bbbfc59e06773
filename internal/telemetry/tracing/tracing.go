// Package tracing wraps go.opentelemetry.io/otel so CORE components never
// touch the otel API directly, mirroring the teacher's
// internal/telemetry/tracing package (referenced from query/org.go as
// tracing.NewSpan()).
package tracing

import (
	"context"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/authapp/zitadel"

var tracer = otel.Tracer(instrumentationName)

// Span wraps a trace.Span and records the call's outcome with
// EndWithError, the exact pattern the teacher uses at every query
// entry point: `ctx, span := tracing.NewSpan(ctx); defer func(){
// span.EndWithError(err) }()`.
type Span struct {
	span trace.Span
}

// NewSpan starts a span named after the caller's function, one frame up
// the stack, so call sites never have to spell out a name by hand.
func NewSpan(ctx context.Context) (context.Context, *Span) {
	name := callerName()
	ctx, span := tracer.Start(ctx, name)
	return ctx, &Span{span: span}
}

func callerName() string {
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	return fn.Name()
}

// EndWithError ends the span, marking it as failed if err != nil.
func (s *Span) EndWithError(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

// SetAttributes attaches key/value pairs such as instance_id or
// command_id for correlation.
func (s *Span) SetAttributes(kv ...attribute.KeyValue) {
	s.span.SetAttributes(kv...)
}

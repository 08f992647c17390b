package bserver

import (
	"context"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ctxKey is the key type for context values.
type ctxKey int

const ctxKeyLogger ctxKey = iota

// withRequestLogger puts a logger for the request in the context. It carries the method, the route
// pattern and the request id when the [middleware.RequestID] middleware ran before it.
func withRequestLogger(logs *zap.Logger) bdispatch.Middleware {
	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, in *bdispatch.Input) error {
			fields := []zap.Field{zap.String("method", in.Request.Method)}
			if pat := in.Route().Pattern; pat != "" {
				fields = append(fields, zap.String("route", pat))
			}

			if id := middleware.RequestIDFrom(ctx); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}

			return next.ServeBHTTP(context.WithValue(ctx, ctxKeyLogger, logs.With(fields...)), w, in)
		})
	}
}

// Log returns a trace-correlated zap logger from the context.
func Log(ctx context.Context) *zap.Logger {
	logs, ok := ctx.Value(ctxKeyLogger).(*zap.Logger)
	if !ok {
		panic("bserver: logger not found in context; is the middleware configured?")
	}

	return logs.With(traceFields(ctx)...)
}

// Span returns the current trace span from the context.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}

	sc := span.SpanContext()

	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

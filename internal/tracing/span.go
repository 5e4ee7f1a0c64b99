package tracing

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// Run executes fn inside a span named name. A nil tracer runs fn untraced.
// Errors are recorded with their domain category.
func Run[T any](ctx context.Context, tracer trace.Tracer, name string, attrs []attribute.KeyValue, fn func(ctx context.Context) (T, error)) (T, error) {
	if tracer == nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	result, err := fn(ctx)
	End(span, err)
	return result, err
}

// End sets the span status from err without ending the span.
func End(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(
		attribute.String(AttrErrorCategory, string(domain.CategoryOf(err))),
		attribute.Bool(AttrErrorRetryable, domain.IsRetryable(err)),
	)
	span.SetStatus(codes.Error, err.Error())
}

// GinMiddleware opens a server span per request. The route pattern, not the
// raw path, names the span so ids do not explode span cardinality.
func GinMiddleware(tracer trace.Tracer) gin.HandlerFunc {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader(HeaderTraceID); id != "" {
			ctx = ContextWithTraceID(ctx, id)
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracer.Start(ctx, fmt.Sprintf("%s%s %s", SpanPrefixHTTP, c.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String(AttrHTTPMethod, c.Request.Method),
				attribute.String(AttrHTTPRoute, route),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int(AttrHTTPStatus, status))
		switch {
		case len(c.Errors) > 0:
			End(span, errors.New(c.Errors.String()))
		case status >= 500:
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}

package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanName returns "cli.command.<first token>", or "cli.command.unknown".
func SpanName(command []string) string {
	if len(command) == 0 || command[0] == "" {
		return SpanPrefixCommand + "unknown"
	}
	return SpanPrefixCommand + command[0]
}

// StartCommand opens a span for one codeql invocation. A nil tracer returns
// ctx and the span already stored in it.
func StartCommand(ctx context.Context, tracer trace.Tracer, mode, id string, command, args []string, description string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := tracer.Start(ctx, SpanName(command), trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String(AttrCommandID, id),
		attribute.String(AttrCommandMode, mode),
		attribute.String(AttrCommandArgs, strings.Join(append(append([]string{}, command...), args...), " ")),
		attribute.String(AttrCommandDescription, description),
	)
	return ctx, span
}

// EndCommand records err (if any) as the span status and ends the span.
func EndCommand(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// SPDX-License-Identifier: Apache-2.0

package log

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// SpanContextHandler adds trace_id/span_id attributes to records emitted while ctx
// carries a live otel span, so a schema load or tunnel acquire can be traced end to end.
type SpanContextHandler struct {
	next slog.Handler
}

func NewSpanContextHandler(next slog.Handler) *SpanContextHandler {
	return &SpanContextHandler{next: next}
}

func (h *SpanContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SpanContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h *SpanContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SpanContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *SpanContextHandler) WithGroup(name string) slog.Handler {
	return &SpanContextHandler{next: h.next.WithGroup(name)}
}

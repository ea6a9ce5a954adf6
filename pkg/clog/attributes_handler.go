package clog

import (
	"context"
	"log/slog"
	"maps"
	"slices"
)

// AttributesHandler appends the attributes collected on the context to every
// record it handles, sorted by key so lines are stable.
type AttributesHandler struct {
	next slog.Handler
}

func NewAttributesHandler(next slog.Handler) *AttributesHandler {
	return &AttributesHandler{next: next}
}

func (h *AttributesHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AttributesHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := Attributes(ctx)
	if len(attrs) == 0 {
		return h.next.Handle(ctx, record)
	}
	keys := slices.Sorted(maps.Keys(attrs))
	record = record.Clone()
	for _, k := range keys {
		record.AddAttrs(slog.Any(k, attrs[k]))
	}
	return h.next.Handle(ctx, record)
}

func (h *AttributesHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AttributesHandler{next: h.next.WithAttrs(attrs)}
}

func (h *AttributesHandler) WithGroup(name string) slog.Handler {
	return &AttributesHandler{next: h.next.WithGroup(name)}
}

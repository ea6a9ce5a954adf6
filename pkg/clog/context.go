package clog

import (
	"context"
	"maps"
	"sync"
)

// Attribute keys shared by the services so request logs line up across
// board, archive and execution calls.
const (
	TaskIDKey   = "task_id"
	SprintIDKey = "sprint_id"
	LogIDKey    = "execution_log_id"

	ErrorAttributeKey = "error.message"
	StackAttributeKey = "error.stack"
)

// bag holds the attributes collected while one request is served.
type bag struct {
	mu    sync.Mutex
	attrs map[string]any
}

type bagKey struct{}

// ContextWithSlog starts a fresh attribute bag. Attributes added to ctx or
// any context derived from it are appended to every record logged with it.
func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, bagKey{}, &bag{attrs: map[string]any{}})
}

func bagOf(ctx context.Context) *bag {
	b, _ := ctx.Value(bagKey{}).(*bag)
	return b
}

func AddAttribute(ctx context.Context, key string, value any) {
	AddAttributes(ctx, map[string]any{key: value})
}

// AddAttributes merges attrs into the bag. Nested maps are merged key by key.
func AddAttributes(ctx context.Context, attrs map[string]any) {
	b := bagOf(ctx)
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	merge(b.attrs, attrs)
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if existing, ok := dst[k].(map[string]any); ok {
			merge(existing, sub)
			continue
		}
		dst[k] = maps.Clone(sub)
	}
}

func AddTaskID(ctx context.Context, id string) {
	AddAttribute(ctx, TaskIDKey, id)
}

func AddSprintID(ctx context.Context, id string) {
	AddAttribute(ctx, SprintIDKey, id)
}

func AddLogID(ctx context.Context, id string) {
	AddAttribute(ctx, LogIDKey, id)
}

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

// Attributes returns a copy of the collected attributes, or nil when ctx
// carries no bag.
func Attributes(ctx context.Context) map[string]any {
	b := bagOf(ctx)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.attrs)
}

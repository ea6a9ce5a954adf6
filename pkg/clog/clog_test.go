package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes(t *testing.T) {
	assert.Nil(t, Attributes(context.Background()))
	AddTaskID(context.Background(), "ignored")

	ctx := ContextWithSlog(context.Background())
	AddTaskID(ctx, "t1")
	AddAttributes(ctx, map[string]any{"move": map[string]any{"from": "s1"}})
	AddAttributes(ctx, map[string]any{"move": map[string]any{"to": "s2"}})
	AddError(ctx, errors.New("boom"))

	attrs := Attributes(ctx)
	assert.Equal(t, "t1", attrs[TaskIDKey])
	assert.Equal(t, map[string]any{"from": "s1", "to": "s2"}, attrs["move"])
	assert.EqualError(t, attrs[ErrorAttributeKey].(error), "boom")

	attrs[TaskIDKey] = "changed"
	assert.Equal(t, "t1", Attributes(ctx)[TaskIDKey])
}

func TestAttributesHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewAttributesHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := ContextWithSlog(context.Background())
	AddSprintID(ctx, "s1")
	AddLogID(ctx, "log1")
	logger.InfoContext(ctx, "prompt generated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "prompt generated", line["msg"])
	assert.Equal(t, "s1", line[SprintIDKey])
	assert.Equal(t, "log1", line[LogIDKey])
}

func TestLevels(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, StatusLevel(http.StatusOK))
	assert.Equal(t, slog.LevelInfo, StatusLevel(499))
	assert.Equal(t, slog.LevelWarn, StatusLevel(http.StatusPreconditionFailed))
	assert.Equal(t, slog.LevelError, StatusLevel(http.StatusServiceUnavailable))

	assert.Equal(t, slog.LevelInfo, CodeLevel(connect.CodeNotFound))
	assert.Equal(t, slog.LevelWarn, CodeLevel(connect.CodeAborted))
	assert.Equal(t, slog.LevelError, CodeLevel(connect.CodeUnavailable))
}

func TestSlogChiMiddleware(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewAttributesHandler(slog.NewJSONHandler(&buf, nil))))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := chi.NewRouter()
	r.Use(SlogChiMiddleware())
	r.Get("/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		AddTaskID(r.Context(), chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/tasks/t9", nil)
	req.Header.Set("X-Request-Id", "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/tasks/{id}", line["route"])
	assert.Equal(t, "t9", line[TaskIDKey])
	assert.Equal(t, "req-1", line["request_id"])
	assert.EqualValues(t, http.StatusNotFound, line["status"])
}

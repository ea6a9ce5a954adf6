package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kazz187/sprintguild/internal/app"
	"github.com/kazz187/sprintguild/internal/archive"
	"github.com/kazz187/sprintguild/internal/board"
	"github.com/kazz187/sprintguild/internal/task"
)

// Tools runs MCP tool calls against the in-process services.
type Tools struct {
	c *app.Container
}

func textResult(v any) *mcp.CallToolResultFor[any] {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("encoding result", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

func errorResult(action string, err error) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error %s: %v", action, err)}},
		IsError: true,
	}
}

func (t *Tools) ListBoardHandler(ctx context.Context, _ *mcp.ServerSession, _ *mcp.CallToolParamsFor[ListBoardInput]) (*mcp.CallToolResultFor[any], error) {
	columns, err := t.c.Engine.ListColumns(ctx)
	if err != nil {
		return errorResult("listing board", err), nil
	}
	return textResult(map[string]any{"columns": columns}), nil
}

func (t *Tools) AddTaskHandler(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[AddTaskInput]) (*mcp.CallToolResultFor[any], error) {
	in := params.Arguments
	created, err := t.c.Engine.AddTask(ctx, in.SprintID, board.TaskFields{
		Title:       in.Title,
		Description: in.Description,
		Priority:    task.Priority(in.Priority),
	})
	if err != nil {
		return errorResult("adding task", err), nil
	}
	return textResult(created), nil
}

func (t *Tools) MoveTaskHandler(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[MoveTaskInput]) (*mcp.CallToolResultFor[any], error) {
	in := params.Arguments
	res, err := t.c.Engine.MoveTask(ctx, in.TaskID, in.SprintID, in.Index)
	if err != nil {
		return errorResult("moving task", err), nil
	}
	return textResult(res), nil
}

func (t *Tools) ArchiveTaskHandler(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ArchiveTaskInput]) (*mcp.CallToolResultFor[any], error) {
	in := params.Arguments
	archived, err := t.c.Archive.Archive(ctx, in.TaskID, in.Actor, in.Reason)
	if err != nil {
		return errorResult("archiving task", err), nil
	}
	return textResult(archived), nil
}

func (t *Tools) SearchArchiveHandler(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SearchArchiveInput]) (*mcp.CallToolResultFor[any], error) {
	in := params.Arguments
	tasks, err := t.c.Archive.List(ctx, archive.Filter{
		Query:    in.Query,
		Priority: task.Priority(in.Priority),
		SprintID: in.SprintID,
	})
	if err != nil {
		return errorResult("searching archive", err), nil
	}
	return textResult(map[string]any{"tasks": tasks}), nil
}

func (t *Tools) GeneratePromptHandler(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[GeneratePromptInput]) (*mcp.CallToolResultFor[any], error) {
	l, err := t.c.Execution.GeneratePrompt(ctx, params.Arguments.SprintID)
	if err != nil {
		return errorResult("generating prompt", err), nil
	}
	return textResult(map[string]any{"logId": l.ID, "prompt": l.PromptSent}), nil
}

func (t *Tools) SubmitResponseHandler(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SubmitResponseInput]) (*mcp.CallToolResultFor[any], error) {
	in := params.Arguments
	rec, err := t.c.Execution.SubmitResponse(ctx, in.LogID, in.Response)
	if err != nil {
		return errorResult("submitting response", err), nil
	}
	return textResult(rec), nil
}

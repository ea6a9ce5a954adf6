package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kazz187/sprintguild/internal/app"
	"github.com/kazz187/sprintguild/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env, err := config.LoadEnv()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load env", "error", err)
		os.Exit(1)
	}
	// stdout carries the protocol.
	app.SetupLogger(env, os.Stderr)

	c, err := app.New(ctx, env)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	server := newServer(&Tools{c: c})
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		slog.ErrorContext(ctx, "failed to run server", "error", err)
		c.Close()
		os.Exit(1)
	}
}

func newServer(t *Tools) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "mcp-sprintguild",
			Title:   "SprintGuild MCP Server",
			Version: "v1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "MCP server for the SprintGuild sprint board. Use sprintguild_list_board to see sprints and their ordered tasks. " +
				"Add, move and archive tasks with the task tools. To report progress, call sprintguild_generate_prompt, " +
				"answer the prompt, then pass the answer to sprintguild_submit_response to mark the tasks you completed.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprintguild_list_board",
		Title:       "SprintGuild: List Board",
		Description: "List the visible sprints in board order, each with its non-archived tasks in column order.",
		InputSchema: ListBoardInputSchema,
	}, t.ListBoardHandler)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprintguild_add_task",
		Title:       "SprintGuild: Add Task",
		Description: "Add a task to the end of a sprint. Labels are assigned automatically from the title and description.",
		InputSchema: AddTaskInputSchema,
	}, t.AddTaskHandler)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprintguild_move_task",
		Title:       "SprintGuild: Move Task",
		Description: "Move a task to a position within a sprint. Other tasks in the affected sprints are renumbered.",
		InputSchema: MoveTaskInputSchema,
	}, t.MoveTaskHandler)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprintguild_archive_task",
		Title:       "SprintGuild: Archive Task",
		Description: "Archive a task. It leaves the board but can be restored later.",
		InputSchema: ArchiveTaskInputSchema,
	}, t.ArchiveTaskHandler)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprintguild_search_archive",
		Title:       "SprintGuild: Search Archive",
		Description: "Search archived tasks by text, priority and sprint, newest archive first.",
		InputSchema: SearchArchiveInputSchema,
	}, t.SearchArchiveHandler)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprintguild_generate_prompt",
		Title:       "SprintGuild: Generate Progress Prompt",
		Description: "Render a sprint's tasks into a progress prompt and open an execution log for the answer.",
		InputSchema: GeneratePromptInputSchema,
	}, t.GeneratePromptHandler)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprintguild_submit_response",
		Title:       "SprintGuild: Submit Response",
		Description: "Store the answer to a progress prompt and mark the tasks it reports as done completed.",
		InputSchema: SubmitResponseInputSchema,
	}, t.SubmitResponseHandler)

	return server
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/kazz187/sprintguild/internal/app"
	"github.com/kazz187/sprintguild/internal/board"
	"github.com/kazz187/sprintguild/internal/config"
	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/internal/execution"
	"github.com/kazz187/sprintguild/internal/task"
)

var (
	cli = kingpin.New("sprintguild", "Sprint board with archive, auto-tagging and AI progress reconciliation")

	jsonOutput = cli.Flag("json", "Print results as JSON").Bool()

	serveCmd = cli.Command("serve", "Run the HTTP server")

	boardCmd = cli.Command("board", "Show the visible board")

	sprintCmd       = cli.Command("sprint", "Sprint commands")
	sprintCreateCmd = sprintCmd.Command("create", "Create a sprint")
	sprintName      = sprintCreateCmd.Arg("name", "Sprint name").Required().String()

	taskCmd         = cli.Command("task", "Task commands")
	taskAddCmd      = taskCmd.Command("add", "Add a task to the end of a sprint")
	taskAddSprint   = taskAddCmd.Arg("sprint-id", "Sprint ID").Required().String()
	taskAddTitle    = taskAddCmd.Arg("title", "Task title").Required().String()
	taskAddDesc     = taskAddCmd.Flag("description", "Task description").Short('d').String()
	taskAddPriority = taskAddCmd.Flag("priority", "Task priority").Short('p').Default("medium").Enum("low", "medium", "high")

	taskMoveCmd    = taskCmd.Command("move", "Move a task to a position in a sprint")
	taskMoveID     = taskMoveCmd.Arg("task-id", "Task ID").Required().String()
	taskMoveSprint = taskMoveCmd.Arg("sprint-id", "Target sprint ID").Required().String()
	taskMoveIndex  = taskMoveCmd.Arg("index", "Target index within the sprint").Required().Int()

	archiveCmd    = cli.Command("archive", "Archive a task")
	archiveID     = archiveCmd.Arg("task-id", "Task ID").Required().String()
	archiveBy     = archiveCmd.Flag("by", "Who is archiving").Default(os.Getenv("USER")).String()
	archiveReason = archiveCmd.Flag("reason", "Why the task is archived").String()

	restoreCmd = cli.Command("restore", "Restore an archived task")
	restoreID  = restoreCmd.Arg("task-id", "Task ID").Required().String()

	tagCmd   = cli.Command("tag", "Preview the labels the auto-tagger assigns")
	tagTitle = tagCmd.Arg("title", "Task title").Required().String()
	tagDesc  = tagCmd.Arg("description", "Task description").String()

	promptCmd    = cli.Command("prompt", "Generate a progress prompt for a sprint")
	promptSprint = promptCmd.Arg("sprint-id", "Sprint ID").Required().String()

	eventsCmd  = cli.Command("events", "Show the event history of a day")
	eventsDate = eventsCmd.Flag("date", "Day to show (YYYY-MM-DD, UTC)").Default(time.Now().UTC().Format("2006-01-02")).String()
	eventsType = eventsCmd.Flag("type", "Only show events of this type").String()

	reconcileCmd = cli.Command("reconcile", "Apply a response read from stdin to an execution log")
	reconcileLog = reconcileCmd.Arg("log-id", "Execution log ID").Required().String()
)

func main() {
	command := kingpin.MustParse(cli.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	app.SetupLogger(env, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if err := run(ctx, c, command); err != nil {
		slog.DebugContext(ctx, "command failed", "command", command, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		c.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, c *app.Container, command string) error {
	switch command {
	case serveCmd.FullCommand():
		return c.Serve(ctx)

	case boardCmd.FullCommand():
		columns, err := c.Engine.ListColumns(ctx)
		if err != nil {
			return err
		}
		return output(columns, func() { printBoard(columns) })

	case sprintCreateCmd.FullCommand():
		s, err := c.Engine.CreateSprint(ctx, *sprintName, "")
		if err != nil {
			return err
		}
		return output(s, func() { fmt.Printf("Created sprint %s (%s)\n", s.ID, s.Name) })

	case taskAddCmd.FullCommand():
		t, err := c.Engine.AddTask(ctx, *taskAddSprint, board.TaskFields{
			Title:       *taskAddTitle,
			Description: *taskAddDesc,
			Priority:    task.Priority(*taskAddPriority),
		})
		if err != nil {
			return err
		}
		return output(t, func() { fmt.Printf("Created task %s %s\n", t.ID, formatTags(t.Tags)) })

	case taskMoveCmd.FullCommand():
		res, err := c.Engine.MoveTask(ctx, *taskMoveID, *taskMoveSprint, *taskMoveIndex)
		if err != nil {
			return err
		}
		return output(res, func() {
			if !res.Moved {
				fmt.Println("Task already in place")
				return
			}
			printBoard(res.Columns)
		})

	case archiveCmd.FullCommand():
		t, err := c.Archive.Archive(ctx, *archiveID, *archiveBy, *archiveReason)
		if err != nil {
			return err
		}
		return output(t, func() { fmt.Printf("Archived %s (%s)\n", t.ID, t.Title) })

	case restoreCmd.FullCommand():
		t, err := c.Archive.Restore(ctx, *restoreID)
		if err != nil {
			return err
		}
		return output(t, func() { fmt.Printf("Restored %s to sprint %s\n", t.ID, t.SprintID) })

	case tagCmd.FullCommand():
		tags := c.Tagger.Tag(*tagTitle, *tagDesc)
		return output(tags, func() { fmt.Println(strings.Join(tags, "\n")) })

	case promptCmd.FullCommand():
		l, err := c.Execution.GeneratePrompt(ctx, *promptSprint)
		if err != nil {
			return err
		}
		return output(l, func() {
			color.New(color.Faint).Fprintf(os.Stderr, "execution log %s\n", l.ID)
			fmt.Print(l.PromptSent)
		})

	case eventsCmd.FullCommand():
		date, err := time.Parse("2006-01-02", *eventsDate)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", *eventsDate, err)
		}
		events, err := c.Journal.Read(ctx, date, eventbus.EventType(*eventsType))
		if err != nil {
			return err
		}
		return output(events, func() {
			for _, e := range events {
				idColor.Printf("%s ", e.CreatedAt.Format(time.TimeOnly))
				fmt.Printf("%-28s %s\n", e.Type, e.ResourceID)
			}
		})

	case reconcileCmd.FullCommand():
		response, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		rec, err := c.Execution.SubmitResponse(ctx, *reconcileLog, string(response))
		if err != nil {
			return err
		}
		return output(rec, func() { printReconciliation(rec) })
	}
	return fmt.Errorf("unknown command %q", command)
}

func output(v any, text func()) error {
	if !*jsonOutput {
		text()
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	headerColor   = color.New(color.Bold, color.FgCyan)
	idColor       = color.New(color.Faint)
	priorityColor = map[task.Priority]*color.Color{
		task.PriorityHigh:   color.New(color.FgRed),
		task.PriorityMedium: color.New(color.FgYellow),
		task.PriorityLow:    color.New(color.FgGreen),
	}
)

func printBoard(columns []board.Column) {
	for i, col := range columns {
		if i > 0 {
			fmt.Println()
		}
		headerColor.Printf("%s [%s]", col.Sprint.Name, col.Sprint.Status)
		idColor.Printf(" %s\n", col.Sprint.ID)
		for j, t := range col.Tasks {
			fmt.Printf("  %d. %s ", j, t.Title)
			priorityColor[t.Priority].Printf("(%s)", t.Priority)
			fmt.Printf(" %s %s", t.Status, formatTags(t.Tags))
			idColor.Printf(" %s\n", t.ID)
		}
	}
}

func printReconciliation(rec *execution.Reconciliation) {
	if len(rec.Completed) == 0 && len(rec.Failed) == 0 {
		fmt.Println("No tasks reported as done")
	}
	for _, id := range rec.Completed {
		color.New(color.FgGreen).Printf("completed %s\n", id)
	}
	for _, id := range rec.AlreadyCompleted {
		idColor.Printf("already completed %s\n", id)
	}
	for _, f := range rec.Failed {
		color.New(color.FgRed).Printf("failed %s: %s\n", f.TaskID, f.Error)
	}
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "#" + strings.Join(tags, " #")
}

package execution

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/pool"

	"github.com/kazz187/sprintguild/internal/board"
	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/internal/executionlog"
	"github.com/kazz187/sprintguild/internal/sprint"
	"github.com/kazz187/sprintguild/internal/task"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/clog"
)

const statusWriters = 4

type Service struct {
	sprintRepo sprint.Repository
	taskRepo   task.Repository
	logRepo    executionlog.Repository
	generator  Generator
	model      string
	queue      *board.Queue
	eventBus   *eventbus.Bus
}

// NewService returns the reconciler. generator may be nil, in which case
// responses are only accepted through SubmitResponse.
func NewService(
	sprintRepo sprint.Repository,
	taskRepo task.Repository,
	logRepo executionlog.Repository,
	generator Generator,
	model string,
	queue *board.Queue,
	eventBus *eventbus.Bus,
) *Service {
	return &Service{
		sprintRepo: sprintRepo,
		taskRepo:   taskRepo,
		logRepo:    logRepo,
		generator:  generator,
		model:      model,
		queue:      queue,
		eventBus:   eventBus,
	}
}

// GeneratePrompt renders the sprint's visible tasks into a prompt and
// records it as an open execution log.
func (s *Service) GeneratePrompt(ctx context.Context, sprintID string) (*executionlog.Log, error) {
	clog.AddSprintID(ctx, sprintID)
	sp, err := s.sprintRepo.Get(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.List(ctx, task.ListFilter{SprintID: sprintID, Partition: task.PartitionVisible})
	if err != nil {
		return nil, err
	}

	l := &executionlog.Log{
		ID:            ulid.Make().String(),
		SprintID:      sprintID,
		PromptSent:    BuildPrompt(sp, tasks),
		ExecutionDate: time.Now(),
		ModelUsed:     s.model,
	}
	if err := s.logRepo.Create(ctx, l); err != nil {
		return nil, err
	}
	s.eventBus.PublishNew(eventbus.ExecutionPromptGenerated, l.ID, map[string]string{"sprint_id": sprintID})
	slog.InfoContext(ctx, "prompt generated", "execution_log_id", l.ID, "tasks", len(tasks))
	return l, nil
}

type TaskFailure struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// Reconciliation is the outcome of applying a response. Matching nothing is
// a normal outcome with empty lists.
type Reconciliation struct {
	Log              *executionlog.Log `json:"log"`
	Completed        []string          `json:"completed"`
	AlreadyCompleted []string          `json:"already_completed"`
	Failed           []TaskFailure     `json:"failed"`
}

// SubmitResponse stores the response on the log and then marks the tasks it
// reports as done completed. If the log cannot be stored nothing else
// happens, so the caller can retry with the same text. A log that was
// stored but not reconciled is reconciled again when the same text is
// resubmitted. Individual task update failures are reported, not rolled
// back.
func (s *Service) SubmitResponse(ctx context.Context, logID, response string) (*Reconciliation, error) {
	clog.AddLogID(ctx, logID)
	if strings.TrimSpace(response) == "" {
		return nil, cerr.NewValidationError("response", "response.required", "response is required")
	}
	release, err := s.queue.Acquire(ctx, logKey(logID))
	if err != nil {
		return nil, err
	}
	defer release()

	l, err := s.logRepo.Get(ctx, logID)
	if err != nil {
		return nil, err
	}
	switch {
	case l.Reconciled():
		return nil, cerr.NewError(cerr.FailedPrecondition, "execution log is already finalized", nil)
	case l.Finalized():
		if *l.AIResponse != response {
			return nil, cerr.NewError(cerr.FailedPrecondition, "execution log is already finalized with a different response", nil)
		}
		slog.InfoContext(ctx, "resuming reconciliation of finalized log")
		// From here on the response is committed; finish regardless of the caller.
		ctx = context.WithoutCancel(ctx)
	default:
		ctx = context.WithoutCancel(ctx)
		now := time.Now()
		l.AIResponse = &response
		l.FinalizedAt = &now
		if err := s.logRepo.Update(ctx, l); err != nil {
			return nil, err
		}
	}

	rec, err := s.reconcile(ctx, l.SprintID, response)
	if err != nil {
		slog.ErrorContext(ctx, "reconciliation skipped", "error", err)
		return nil, err
	}
	now := time.Now()
	l.ReconciledAt = &now
	if err := s.logRepo.Update(ctx, l); err != nil {
		// Reconciling again is harmless; completed tasks are reported as such.
		slog.WarnContext(ctx, "failed to mark execution log reconciled", "error", err)
		l.ReconciledAt = nil
	}
	rec.Log = l

	s.eventBus.PublishNew(eventbus.ExecutionReconciled, l.ID, map[string]string{
		"sprint_id": l.SprintID,
		"completed": strconv.Itoa(len(rec.Completed)),
		"failed":    strconv.Itoa(len(rec.Failed)),
	})
	slog.InfoContext(ctx, "response reconciled",
		"completed", len(rec.Completed), "already_completed", len(rec.AlreadyCompleted), "failed", len(rec.Failed))
	return rec, nil
}

// logKey is the queue key serializing submissions to one execution log.
func logKey(logID string) string {
	return "execution_log:" + logID
}

type statusOutcome struct {
	taskID string
	err    error
}

func (s *Service) reconcile(ctx context.Context, sprintID, response string) (*Reconciliation, error) {
	release, err := s.queue.Acquire(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	defer release()

	tasks, err := s.taskRepo.List(ctx, task.ListFilter{SprintID: sprintID, Partition: task.PartitionVisible})
	if err != nil {
		return nil, err
	}

	rec := &Reconciliation{Completed: []string{}, AlreadyCompleted: []string{}, Failed: []TaskFailure{}}
	p := pool.NewWithResults[statusOutcome]().WithMaxGoroutines(statusWriters)
	for _, t := range InferCompletions(tasks, response) {
		if t.Status == task.StatusCompleted {
			rec.AlreadyCompleted = append(rec.AlreadyCompleted, t.ID)
			continue
		}
		p.Go(func() statusOutcome {
			return statusOutcome{taskID: t.ID, err: s.taskRepo.UpdateStatus(ctx, t.ID, task.StatusCompleted)}
		})
	}
	for _, o := range p.Wait() {
		if o.err != nil {
			slog.WarnContext(ctx, "failed to complete task", "task_id", o.taskID, "error", o.err)
			rec.Failed = append(rec.Failed, TaskFailure{TaskID: o.taskID, Error: o.err.Error()})
			continue
		}
		rec.Completed = append(rec.Completed, o.taskID)
		s.eventBus.PublishNew(eventbus.TaskUpdated, o.taskID, map[string]string{"sprint_id": sprintID})
	}
	sort.Strings(rec.Completed)
	sort.Slice(rec.Failed, func(i, j int) bool { return rec.Failed[i].TaskID < rec.Failed[j].TaskID })
	return rec, nil
}

// Execute sends a fresh prompt to the generator and reconciles its answer.
// When the generator fails the open log is returned with the error so the
// response can still be supplied by hand.
func (s *Service) Execute(ctx context.Context, sprintID string) (*Reconciliation, error) {
	if s.generator == nil {
		return nil, cerr.NewError(cerr.FailedPrecondition, "text generation is not configured", nil)
	}
	l, err := s.GeneratePrompt(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	response, err := s.generator.Complete(ctx, l.PromptSent)
	if err != nil {
		return &Reconciliation{Log: l}, cerr.NewError(cerr.Unavailable, "text generation failed", err)
	}
	return s.SubmitResponse(ctx, l.ID, response)
}

func (s *Service) ListLogs(ctx context.Context, sprintID string) ([]*executionlog.Log, error) {
	return s.logRepo.ListBySprint(ctx, sprintID)
}

func (s *Service) GetLog(ctx context.Context, logID string) (*executionlog.Log, error) {
	return s.logRepo.Get(ctx, logID)
}

func (s *Service) DeleteLog(ctx context.Context, logID string) error {
	return s.logRepo.Delete(ctx, logID)
}

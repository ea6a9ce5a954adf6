package archive

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/kazz187/sprintguild/internal/board"
	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/internal/task"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/clog"
)

// ImageRemover deletes a task's attachments, blobs included.
type ImageRemover interface {
	RemoveAllForTask(ctx context.Context, taskID string) error
}

// Filter narrows List. Empty fields match everything; set fields are
// combined with AND.
type Filter struct {
	// Query matches title, description or any tag, case-insensitively.
	Query    string
	Priority task.Priority
	SprintID string
}

func (f Filter) match(t *task.Task) bool {
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.SprintID != "" && t.SprintID != f.SprintID {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	return slices.ContainsFunc(t.Tags, func(tag string) bool {
		return strings.Contains(strings.ToLower(tag), q)
	})
}

// Service moves tasks between the visible and archived partitions and
// permanently deletes archived tasks.
type Service struct {
	taskRepo task.Repository
	images   ImageRemover
	queue    *board.Queue
	eventBus *eventbus.Bus
}

func NewService(taskRepo task.Repository, images ImageRemover, queue *board.Queue, eventBus *eventbus.Bus) *Service {
	return &Service{
		taskRepo: taskRepo,
		images:   images,
		queue:    queue,
		eventBus: eventBus,
	}
}

// Archive hides a visible task from the board, recording who archived it
// and why. Every other field is preserved.
func (s *Service) Archive(ctx context.Context, taskID, actor, reason string) (*task.Task, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, cerr.NewValidationError("actor", "actor.required", "actor is required")
	}
	clog.AddTaskID(ctx, taskID)
	t, release, err := s.lockTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer release()

	if t.Archived() {
		return nil, cerr.NewError(cerr.FailedPrecondition, "task is already archived", nil)
	}
	now := time.Now()
	t.ArchivedAt = &now
	t.ArchivedBy = actor
	t.ArchiveReason = strings.TrimSpace(reason)
	t.UpdatedAt = now
	if err := s.taskRepo.Update(context.WithoutCancel(ctx), t); err != nil {
		return nil, err
	}

	s.eventBus.PublishNew(eventbus.TaskArchived, t.ID, map[string]string{
		"sprint_id": t.SprintID,
		"actor":     actor,
		"title":     t.Title,
	})
	slog.InfoContext(ctx, "task archived", "actor", actor)
	return t, nil
}

// Restore returns an archived task to the end of its sprint's column.
func (s *Service) Restore(ctx context.Context, taskID string) (*task.Task, error) {
	clog.AddTaskID(ctx, taskID)
	t, release, err := s.lockTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer release()

	if !t.Archived() {
		return nil, cerr.NewError(cerr.FailedPrecondition, "task is not archived", nil)
	}
	next, err := board.NextOrderIndex(ctx, s.taskRepo, t.SprintID)
	if err != nil {
		return nil, err
	}
	t.ArchivedAt = nil
	t.ArchivedBy = ""
	t.ArchiveReason = ""
	t.OrderIndex = next
	t.UpdatedAt = time.Now()
	if err := s.taskRepo.Update(context.WithoutCancel(ctx), t); err != nil {
		return nil, err
	}

	s.eventBus.PublishNew(eventbus.TaskRestored, t.ID, map[string]string{"sprint_id": t.SprintID})
	slog.InfoContext(ctx, "task restored", "order_index", next)
	return t, nil
}

// Delete permanently removes an archived task and its attachments. Callers
// confirm with the user before calling it.
func (s *Service) Delete(ctx context.Context, taskID string) error {
	clog.AddTaskID(ctx, taskID)
	t, release, err := s.lockTask(ctx, taskID)
	if err != nil {
		return err
	}
	defer release()

	if !t.Archived() {
		return cerr.NewError(cerr.FailedPrecondition, "only archived tasks can be deleted", nil)
	}
	ctx = context.WithoutCancel(ctx)
	if s.images != nil {
		if err := s.images.RemoveAllForTask(ctx, t.ID); err != nil {
			return err
		}
	}
	if err := s.taskRepo.Delete(ctx, t.ID); err != nil {
		return err
	}

	s.eventBus.PublishNew(eventbus.TaskDeleted, t.ID, map[string]string{"sprint_id": t.SprintID})
	slog.InfoContext(ctx, "task deleted")
	return nil
}

// Get returns an archived task.
func (s *Service) Get(ctx context.Context, taskID string) (*task.Task, error) {
	t, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.Archived() {
		return nil, cerr.NewError(cerr.NotFound, "archived task not found", nil)
	}
	return t, nil
}

// List returns archived tasks matching the filter, most recently archived
// first.
func (s *Service) List(ctx context.Context, filter Filter) ([]*task.Task, error) {
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, cerr.NewValidationError("priority", "priority.enum", "unknown priority")
	}
	archived, err := s.taskRepo.List(ctx, task.ListFilter{SprintID: filter.SprintID, Partition: task.PartitionArchived})
	if err != nil {
		return nil, err
	}
	out := make([]*task.Task, 0, len(archived))
	for _, t := range archived {
		if filter.match(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ArchivedAt.After(*out[j].ArchivedAt)
	})
	return out, nil
}

// lockTask acquires the queue key of the task's sprint and returns the task
// as read under the lock.
func (s *Service) lockTask(ctx context.Context, taskID string) (*task.Task, func(), error) {
	t, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	release, err := s.queue.Acquire(ctx, t.SprintID)
	if err != nil {
		return nil, nil, err
	}
	locked, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		release()
		return nil, nil, err
	}
	if locked.SprintID != t.SprintID {
		release()
		return nil, nil, cerr.NewError(cerr.Aborted, "task moved concurrently; retry", nil)
	}
	return locked, release, nil
}

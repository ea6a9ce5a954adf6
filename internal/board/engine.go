package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/sprintguild/internal/autotag"
	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/internal/sprint"
	"github.com/kazz187/sprintguild/internal/task"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/clog"
)

// SprintOrderKey is the queue key guarding sprint records and their order.
const SprintOrderKey = "~sprints"

// moveAttempts bounds how often MoveTask retries when the task changes
// sprint between lookup and lock.
const moveAttempts = 3

// ImageClaimer attaches draft images to a newly created task.
type ImageClaimer interface {
	ClaimDrafts(ctx context.Context, draftKey, taskID string) error
}

type Column struct {
	Sprint *sprint.Sprint `json:"sprint"`
	Tasks  []*task.Task   `json:"tasks"`
}

func (c Column) clone() Column {
	out := Column{Sprint: c.Sprint.Clone(), Tasks: make([]*task.Task, len(c.Tasks))}
	for i, t := range c.Tasks {
		out.Tasks[i] = t.Clone()
	}
	return out
}

// Engine owns the board: the ordered columns and every mutation of task
// placement. Mutations are serialized per sprint through the Queue.
type Engine struct {
	sprintRepo sprint.Repository
	taskRepo   task.Repository
	tagger     *autotag.Tagger
	images     ImageClaimer
	queue      *Queue
	eventBus   *eventbus.Bus

	mu       sync.RWMutex
	snapshot []Column
}

func NewEngine(
	sprintRepo sprint.Repository,
	taskRepo task.Repository,
	tagger *autotag.Tagger,
	images ImageClaimer,
	queue *Queue,
	eventBus *eventbus.Bus,
) *Engine {
	return &Engine{
		sprintRepo: sprintRepo,
		taskRepo:   taskRepo,
		tagger:     tagger,
		images:     images,
		queue:      queue,
		eventBus:   eventBus,
	}
}

// ListColumns reads the visible board and records it as the engine's
// snapshot. It never writes.
func (e *Engine) ListColumns(ctx context.Context) ([]Column, error) {
	sprints, err := e.sprintRepo.List(ctx, false)
	if err != nil {
		return nil, err
	}
	tasks, err := e.taskRepo.List(ctx, task.ListFilter{Partition: task.PartitionVisible})
	if err != nil {
		return nil, err
	}

	bySprint := make(map[string][]*task.Task, len(sprints))
	for _, t := range tasks {
		bySprint[t.SprintID] = append(bySprint[t.SprintID], t)
	}
	columns := make([]Column, 0, len(sprints))
	for _, s := range sprints {
		col := bySprint[s.ID]
		task.SortByOrder(col)
		if col == nil {
			col = []*task.Task{}
		}
		columns = append(columns, Column{Sprint: s, Tasks: col})
	}

	e.mu.Lock()
	e.snapshot = cloneColumns(columns)
	e.mu.Unlock()
	return columns, nil
}

// Snapshot returns a copy of the board as of the last ListColumns call,
// with the columns touched by later engine mutations reloaded. Writes made
// outside the engine show up only after the next ListColumns. It is nil
// before the first ListColumns call.
func (e *Engine) Snapshot() []Column {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneColumns(e.snapshot)
}

// refreshSnapshot reloads the columns of sprintIDs into the snapshot, or
// the whole board when none are given. The caller holds the sprints' queue
// keys. Failures only leave the snapshot stale.
func (e *Engine) refreshSnapshot(ctx context.Context, sprintIDs ...string) {
	e.mu.RLock()
	loaded := e.snapshot != nil
	e.mu.RUnlock()
	if !loaded {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if len(sprintIDs) == 0 {
		if _, err := e.ListColumns(ctx); err != nil {
			slog.WarnContext(ctx, "failed to refresh board snapshot", "error", err)
		}
		return
	}

	fresh := make(map[string]Column, len(sprintIDs))
	for _, id := range sprintIDs {
		s, err := e.sprintRepo.Get(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "failed to refresh snapshot column", "sprint_id", id, "error", err)
			continue
		}
		tasks, err := e.taskRepo.List(ctx, task.ListFilter{SprintID: id, Partition: task.PartitionVisible})
		if err != nil {
			slog.WarnContext(ctx, "failed to refresh snapshot column", "sprint_id", id, "error", err)
			continue
		}
		task.SortByOrder(tasks)
		if tasks == nil {
			tasks = []*task.Task{}
		}
		fresh[id] = Column{Sprint: s, Tasks: tasks}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, c := range e.snapshot {
		if col, ok := fresh[c.Sprint.ID]; ok {
			e.snapshot[i] = col
		}
	}
}

func cloneColumns(cols []Column) []Column {
	if cols == nil {
		return nil
	}
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = c.clone()
	}
	return out
}

type MoveResult struct {
	Task *task.Task `json:"task"`
	// Moved is false when the task already was at the requested position.
	Moved bool `json:"moved"`
	// Columns holds the affected columns after the move, source first.
	Columns []Column `json:"columns"`
}

// MoveTask places a visible task at targetIndex of the target sprint's
// column and renumbers the affected columns densely. For moves within one
// column, targetIndex equal to the column length means "last".
func (e *Engine) MoveTask(ctx context.Context, taskID, targetSprintID string, targetIndex int) (*MoveResult, error) {
	clog.AddTaskID(ctx, taskID)
	clog.AddAttribute(ctx, "target_sprint_id", targetSprintID)
	for range moveAttempts {
		t, err := e.getVisibleTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		release, err := e.queue.Acquire(ctx, t.SprintID, targetSprintID)
		if err != nil {
			return nil, err
		}
		res, retry, err := e.moveLocked(ctx, taskID, t.SprintID, targetSprintID, targetIndex)
		release()
		if !retry {
			return res, err
		}
	}
	return nil, cerr.NewError(cerr.Aborted, "task moved concurrently; retry", nil)
}

func (e *Engine) moveLocked(ctx context.Context, taskID, sourceSprintID, targetSprintID string, targetIndex int) (*MoveResult, bool, error) {
	t, err := e.getVisibleTask(ctx, taskID)
	if err != nil {
		return nil, false, err
	}
	if t.SprintID != sourceSprintID {
		return nil, true, nil
	}
	target, err := e.sprintRepo.Get(ctx, targetSprintID)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return nil, false, cerr.NewValidationError("target_sprint_id", "sprint.exists", "target sprint does not exist")
		}
		return nil, false, err
	}
	if target.Hidden {
		return nil, false, cerr.NewValidationError("target_sprint_id", "sprint.visible", "target sprint is hidden")
	}

	source, err := e.taskRepo.List(ctx, task.ListFilter{SprintID: sourceSprintID, Partition: task.PartitionVisible})
	if err != nil {
		return nil, false, err
	}
	from := slices.IndexFunc(source, func(c *task.Task) bool { return c.ID == taskID })
	if from < 0 {
		return nil, true, nil
	}

	var columns [][]*task.Task
	var sprintIDs []string
	if sourceSprintID == targetSprintID {
		if targetIndex < 0 || targetIndex > len(source) {
			return nil, false, indexError(len(source))
		}
		if targetIndex == len(source) {
			targetIndex = len(source) - 1
		}
		if targetIndex == from {
			return &MoveResult{
				Task:    t,
				Columns: []Column{{Sprint: target, Tasks: source}},
			}, false, nil
		}
		col := slices.Delete(slices.Clone(source), from, from+1)
		col = slices.Insert(col, targetIndex, t)
		columns = [][]*task.Task{col}
		sprintIDs = []string{targetSprintID}
	} else {
		dest, err := e.taskRepo.List(ctx, task.ListFilter{SprintID: targetSprintID, Partition: task.PartitionVisible})
		if err != nil {
			return nil, false, err
		}
		if targetIndex < 0 || targetIndex > len(dest) {
			return nil, false, indexError(len(dest))
		}
		rest := slices.Delete(slices.Clone(source), from, from+1)
		dest = slices.Insert(slices.Clone(dest), targetIndex, t)
		columns = [][]*task.Task{rest, dest}
		sprintIDs = []string{sourceSprintID, targetSprintID}
	}

	placements := renumber(taskID, columns, sprintIDs)

	// Writes are not cancelled once issued.
	writeCtx := context.WithoutCancel(ctx)
	applied, err := e.taskRepo.ApplyPlacements(writeCtx, placements)
	if applied > 0 {
		e.refreshSnapshot(ctx, sprintIDs...)
	}
	if err != nil {
		return nil, false, e.renumberFailure(ctx, sprintIDs, applied, len(placements), err)
	}

	moved := t.Clone()
	moved.SprintID = targetSprintID
	moved.OrderIndex = targetIndex
	result := &MoveResult{Task: moved, Moved: true}
	for i, col := range columns {
		s := target
		if sprintIDs[i] != targetSprintID {
			if s, err = e.sprintRepo.Get(ctx, sprintIDs[i]); err != nil {
				slog.WarnContext(ctx, "failed to reload source sprint after move", "sprint_id", sprintIDs[i], "error", err)
				continue
			}
		}
		result.Columns = append(result.Columns, Column{Sprint: s, Tasks: placed(col, sprintIDs[i])})
	}

	e.eventBus.PublishNew(eventbus.TaskMoved, taskID, map[string]string{
		"from_sprint_id": sourceSprintID,
		"to_sprint_id":   targetSprintID,
		"index":          strconv.Itoa(targetIndex),
	})
	slog.InfoContext(ctx, "task moved", "from_sprint_id", sourceSprintID, "index", targetIndex, "writes", len(placements))
	return result, false, nil
}

// renumber assigns every task its column position and returns the
// placements that differ from what is stored, the moved task first.
func renumber(movedID string, columns [][]*task.Task, sprintIDs []string) []task.Placement {
	var moved []task.Placement
	var others []task.Placement
	for c, col := range columns {
		for i, t := range col {
			if t.SprintID == sprintIDs[c] && t.OrderIndex == i && t.ID != movedID {
				continue
			}
			p := task.Placement{TaskID: t.ID, SprintID: sprintIDs[c], OrderIndex: i}
			if t.ID == movedID {
				moved = append(moved, p)
			} else {
				others = append(others, p)
			}
		}
	}
	return append(moved, others...)
}

func placed(col []*task.Task, sprintID string) []*task.Task {
	out := make([]*task.Task, len(col))
	for i, t := range col {
		c := t.Clone()
		c.SprintID = sprintID
		c.OrderIndex = i
		out[i] = c
	}
	return out
}

func indexError(length int) error {
	return cerr.NewValidationError("target_index", "target_index.range",
		fmt.Sprintf("target index must be between 0 and %d", length))
}

// renumberFailure classifies a failed placement batch: nothing written is a
// plain store failure, anything else leaves the columns inconsistent and the
// caller must refetch them.
func (e *Engine) renumberFailure(ctx context.Context, sprintIDs []string, applied, total int, err error) error {
	if applied == 0 {
		return err
	}
	slog.ErrorContext(ctx, "partial renumber", "sprint_ids", sprintIDs, "applied", applied, "total", total, "error", err)
	e.eventBus.PublishNew(eventbus.BoardStale, strings.Join(sprintIDs, ","), map[string]string{
		"applied": strconv.Itoa(applied),
		"total":   strconv.Itoa(total),
	})
	pe := &PartialRenumberError{SprintIDs: sprintIDs, Applied: applied, Total: total, Err: err}
	return cerr.NewError(cerr.Aborted, "board partially updated; refetch columns", pe).
		AddDetailMessage("refetch sprints: " + strings.Join(sprintIDs, ","))
}

func (e *Engine) getVisibleTask(ctx context.Context, taskID string) (*task.Task, error) {
	t, err := e.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Archived() {
		return nil, cerr.NewValidationError("task_id", "task.visible", "task is archived")
	}
	return t, nil
}

type TaskFields struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    task.Priority `json:"priority"`
	Status      task.Status   `json:"status"`
	Tags        []string      `json:"tags"`
	// DraftKey claims images uploaded before the task existed.
	DraftKey string `json:"draft_key"`
}

// AddTask creates a task at the end of the sprint's column.
func (e *Engine) AddTask(ctx context.Context, sprintID string, fields TaskFields) (*task.Task, error) {
	if strings.TrimSpace(fields.Title) == "" {
		return nil, cerr.NewValidationError("title", "title.required", "title is required")
	}
	if fields.Priority == "" {
		fields.Priority = task.PriorityMedium
	}
	if fields.Status == "" {
		fields.Status = task.StatusTodo
	}
	if err := validateEnums(fields.Priority, fields.Status); err != nil {
		return nil, err
	}

	release, err := e.queue.Acquire(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := e.sprintRepo.Get(ctx, sprintID); err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return nil, cerr.NewValidationError("sprint_id", "sprint.exists", "sprint does not exist")
		}
		return nil, err
	}
	next, err := NextOrderIndex(ctx, e.taskRepo, sprintID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t := &task.Task{
		ID:          ulid.Make().String(),
		SprintID:    sprintID,
		Title:       strings.TrimSpace(fields.Title),
		Description: fields.Description,
		Priority:    fields.Priority,
		Status:      fields.Status,
		OrderIndex:  next,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.Tags = autotag.Merge(fields.Tags, e.tagger.Tag(t.Title, t.Description))
	if err := e.taskRepo.Create(context.WithoutCancel(ctx), t); err != nil {
		return nil, err
	}
	e.refreshSnapshot(ctx, sprintID)

	if fields.DraftKey != "" && e.images != nil {
		if err := e.images.ClaimDrafts(ctx, fields.DraftKey, t.ID); err != nil {
			slog.WarnContext(ctx, "failed to claim draft images", "task_id", t.ID, "draft_key", fields.DraftKey, "error", err)
		}
	}

	e.eventBus.PublishNew(eventbus.TaskCreated, t.ID, map[string]string{"sprint_id": sprintID})
	slog.InfoContext(ctx, "task created", "task_id", t.ID, "sprint_id", sprintID)
	return t, nil
}

// EditTaskInput holds optional edits; nil fields are left unchanged.
type EditTaskInput struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Priority    *task.Priority `json:"priority"`
	Status      *task.Status   `json:"status"`
	Tags        *[]string      `json:"tags"`
}

func (e *Engine) EditTask(ctx context.Context, taskID string, in EditTaskInput) (*task.Task, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, cerr.NewValidationError("title", "title.required", "title is required")
	}
	clog.AddTaskID(ctx, taskID)
	for range moveAttempts {
		current, err := e.taskRepo.Get(ctx, taskID)
		if err != nil {
			return nil, err
		}
		release, err := e.queue.Acquire(ctx, current.SprintID)
		if err != nil {
			return nil, err
		}
		t, retry, err := e.editLocked(ctx, taskID, current.SprintID, in)
		release()
		if !retry {
			return t, err
		}
	}
	return nil, cerr.NewError(cerr.Aborted, "task moved concurrently; retry", nil)
}

// editLocked applies in to the task while sprintID is held. It asks for a
// retry when the task left that sprint before the lock was taken.
func (e *Engine) editLocked(ctx context.Context, taskID, sprintID string, in EditTaskInput) (*task.Task, bool, error) {
	t, err := e.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, false, err
	}
	if t.SprintID != sprintID {
		return nil, true, nil
	}
	if t.Archived() {
		return nil, false, cerr.NewError(cerr.FailedPrecondition, "archived tasks cannot be edited", nil)
	}

	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if err := validateEnums(t.Priority, t.Status); err != nil {
		return nil, false, err
	}
	tags := t.Tags
	if in.Tags != nil {
		tags = *in.Tags
	}
	t.Tags = autotag.Merge(tags, e.tagger.Tag(t.Title, t.Description))
	t.UpdatedAt = time.Now()

	if err := e.taskRepo.Update(context.WithoutCancel(ctx), t); err != nil {
		return nil, false, err
	}
	e.refreshSnapshot(ctx, t.SprintID)
	e.eventBus.PublishNew(eventbus.TaskUpdated, t.ID, map[string]string{"sprint_id": t.SprintID})
	return t, false, nil
}

func validateEnums(p task.Priority, s task.Status) error {
	if !p.Valid() {
		return cerr.NewValidationError("priority", "priority.enum", fmt.Sprintf("unknown priority %q", p))
	}
	if !s.Valid() {
		return cerr.NewValidationError("status", "status.enum", fmt.Sprintf("unknown status %q", s))
	}
	return nil
}

// NextOrderIndex returns the index that appends a task to the end of the
// sprint's visible column. The caller must hold the sprint's queue key.
func NextOrderIndex(ctx context.Context, repo task.Repository, sprintID string) (int, error) {
	tasks, err := repo.List(ctx, task.ListFilter{SprintID: sprintID, Partition: task.PartitionVisible})
	if err != nil {
		return 0, err
	}
	next := 0
	for _, t := range tasks {
		if t.OrderIndex >= next {
			next = t.OrderIndex + 1
		}
	}
	return next, nil
}

// PartialRenumberError reports a placement batch that stopped midway. The
// listed sprints have inconsistent order indexes until refetched.
type PartialRenumberError struct {
	SprintIDs []string
	Applied   int
	Total     int
	Err       error
}

var ErrPartialRenumber = errors.New("partial renumber")

func (e *PartialRenumberError) Error() string {
	return fmt.Sprintf("renumbered %d of %d tasks in sprints %s: %v", e.Applied, e.Total, strings.Join(e.SprintIDs, ","), e.Err)
}

func (e *PartialRenumberError) Unwrap() []error {
	return []error{ErrPartialRenumber, e.Err}
}

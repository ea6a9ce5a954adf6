package board

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/internal/sprint"
	"github.com/kazz187/sprintguild/pkg/cerr"
)

func (e *Engine) ListSprints(ctx context.Context, includeHidden bool) ([]*sprint.Sprint, error) {
	return e.sprintRepo.List(ctx, includeHidden)
}

func (e *Engine) CreateSprint(ctx context.Context, name string, status sprint.Status) (*sprint.Sprint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, cerr.NewValidationError("name", "name.required", "name is required")
	}
	if status == "" {
		status = sprint.StatusPlanned
	}
	if !status.Valid() {
		return nil, cerr.NewValidationError("status", "status.enum", fmt.Sprintf("unknown status %q", status))
	}

	release, err := e.queue.Acquire(ctx, SprintOrderKey)
	if err != nil {
		return nil, err
	}
	defer release()

	next, err := e.nextSprintIndex(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	s := &sprint.Sprint{
		ID:         ulid.Make().String(),
		Name:       name,
		OrderIndex: next,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.sprintRepo.Create(context.WithoutCancel(ctx), s); err != nil {
		return nil, err
	}
	e.refreshSnapshot(ctx)
	e.eventBus.PublishNew(eventbus.SprintCreated, s.ID, nil)
	slog.InfoContext(ctx, "sprint created", "sprint_id", s.ID)
	return s, nil
}

func (e *Engine) RenameSprint(ctx context.Context, sprintID, name string) (*sprint.Sprint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, cerr.NewValidationError("name", "name.required", "name is required")
	}
	return e.updateSprint(ctx, sprintID, func(s *sprint.Sprint) error {
		s.Name = name
		return nil
	})
}

func (e *Engine) SetSprintStatus(ctx context.Context, sprintID string, status sprint.Status) (*sprint.Sprint, error) {
	if !status.Valid() {
		return nil, cerr.NewValidationError("status", "status.enum", fmt.Sprintf("unknown status %q", status))
	}
	return e.updateSprint(ctx, sprintID, func(s *sprint.Sprint) error {
		s.Status = status
		return nil
	})
}

// SetSprintHidden toggles visibility. A sprint that becomes visible again is
// appended after the currently visible sprints.
func (e *Engine) SetSprintHidden(ctx context.Context, sprintID string, hidden bool) (*sprint.Sprint, error) {
	return e.updateSprint(ctx, sprintID, func(s *sprint.Sprint) error {
		if s.Hidden == hidden {
			return nil
		}
		if !hidden {
			next, err := e.nextSprintIndex(ctx)
			if err != nil {
				return err
			}
			s.OrderIndex = next
		}
		s.Hidden = hidden
		return nil
	})
}

func (e *Engine) updateSprint(ctx context.Context, sprintID string, mutate func(*sprint.Sprint) error) (*sprint.Sprint, error) {
	release, err := e.queue.Acquire(ctx, SprintOrderKey)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := e.sprintRepo.Get(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if err := mutate(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now()
	if err := e.sprintRepo.Update(context.WithoutCancel(ctx), s); err != nil {
		return nil, err
	}
	e.refreshSnapshot(ctx)
	e.eventBus.PublishNew(eventbus.SprintUpdated, s.ID, nil)
	return s, nil
}

// MoveSprint reorders a visible sprint among the visible sprints, renumbering
// them densely. targetIndex equal to the number of visible sprints means
// "last".
func (e *Engine) MoveSprint(ctx context.Context, sprintID string, targetIndex int) ([]*sprint.Sprint, error) {
	release, err := e.queue.Acquire(ctx, SprintOrderKey)
	if err != nil {
		return nil, err
	}
	defer release()

	sprints, err := e.sprintRepo.List(ctx, false)
	if err != nil {
		return nil, err
	}
	from := slices.IndexFunc(sprints, func(s *sprint.Sprint) bool { return s.ID == sprintID })
	if from < 0 {
		if _, err := e.sprintRepo.Get(ctx, sprintID); err != nil {
			return nil, err
		}
		return nil, cerr.NewValidationError("sprint_id", "sprint.visible", "hidden sprints cannot be reordered")
	}
	if targetIndex < 0 || targetIndex > len(sprints) {
		return nil, cerr.NewValidationError("target_index", "target_index.range",
			fmt.Sprintf("target index must be between 0 and %d", len(sprints)))
	}
	if targetIndex == len(sprints) {
		targetIndex = len(sprints) - 1
	}
	if targetIndex == from {
		return sprints, nil
	}

	moved := sprints[from]
	order := slices.Delete(slices.Clone(sprints), from, from+1)
	order = slices.Insert(order, targetIndex, moved)

	var changed []*sprint.Sprint
	for i, s := range order {
		if s.OrderIndex == i {
			continue
		}
		c := s.Clone()
		c.OrderIndex = i
		c.UpdatedAt = time.Now()
		if s.ID == sprintID {
			changed = slices.Insert(changed, 0, c)
		} else {
			changed = append(changed, c)
		}
	}

	writeCtx := context.WithoutCancel(ctx)
	for i, s := range changed {
		if err := e.sprintRepo.Update(writeCtx, s); err != nil {
			if i > 0 {
				e.refreshSnapshot(ctx)
			}
			return nil, e.renumberFailure(ctx, []string{SprintOrderKey}, i, len(changed), err)
		}
	}
	e.refreshSnapshot(ctx)

	out := make([]*sprint.Sprint, len(order))
	for i, s := range order {
		c := s.Clone()
		c.OrderIndex = i
		out[i] = c
	}
	e.eventBus.PublishNew(eventbus.SprintMoved, sprintID, map[string]string{"index": strconv.Itoa(targetIndex)})
	return out, nil
}

func (e *Engine) nextSprintIndex(ctx context.Context) (int, error) {
	sprints, err := e.sprintRepo.List(ctx, false)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, s := range sprints {
		if s.OrderIndex >= next {
			next = s.OrderIndex + 1
		}
	}
	return next, nil
}

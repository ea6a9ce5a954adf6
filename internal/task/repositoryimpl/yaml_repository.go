package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/sprintguild/internal/task"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/storage"
)

const tasksPrefix = "tasks"

// YAMLRepository keeps one YAML document per task. Placement batches are
// written record by record, so a failure can leave a prefix applied.
type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", tasksPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, path(t.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("task", err)
	}
	t, err := decode(data)
	if err != nil {
		return nil, cerr.WrapDecodeError("task", err)
	}
	return t, nil
}

func (r *YAMLRepository) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	paths, err := r.storage.List(ctx, tasksPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("tasks", err)
	}

	var all []*task.Task
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, cerr.WrapStorageReadError("tasks", err)
		}
		t, err := decode(data)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed task record", "path", p, "error", err)
			continue
		}
		if filter.Match(t) {
			all = append(all, t)
		}
	}
	task.SortByOrder(all)
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, path(t.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) UpdateStatus(ctx context.Context, id string, status task.Status) error {
	t, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return r.write(ctx, t)
}

func (r *YAMLRepository) ApplyPlacements(ctx context.Context, placements []task.Placement) (int, error) {
	for i, p := range placements {
		t, err := r.Get(ctx, p.TaskID)
		if err != nil {
			return i, err
		}
		t.SprintID = p.SprintID
		t.OrderIndex = p.OrderIndex
		t.UpdatedAt = time.Now()
		if err := r.write(ctx, t); err != nil {
			return i, err
		}
	}
	return len(placements), nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.WrapStorageDeleteError("task", err)
	}
	return nil
}

func (r *YAMLRepository) write(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return cerr.NewError(cerr.InvalidArgument, err.Error(), nil)
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return cerr.WrapEncodeError("task", err)
	}
	if err := r.storage.Write(ctx, path(t.ID), data); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}

func decode(data []byte) (*task.Task, error) {
	var t task.Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

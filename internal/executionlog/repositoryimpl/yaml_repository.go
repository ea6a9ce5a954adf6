package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/sprintguild/internal/executionlog"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/storage"
)

const logsPrefix = "execution_logs"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", logsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, l *executionlog.Log) error {
	exists, err := r.storage.Exists(ctx, path(l.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("execution log", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "execution log already exists", nil)
	}
	return r.write(ctx, l)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*executionlog.Log, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("execution log", err)
	}
	l, err := decode(data)
	if err != nil {
		return nil, cerr.WrapDecodeError("execution log", err)
	}
	return l, nil
}

func (r *YAMLRepository) ListBySprint(ctx context.Context, sprintID string) ([]*executionlog.Log, error) {
	paths, err := r.storage.List(ctx, logsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("execution logs", err)
	}
	var out []*executionlog.Log
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, cerr.WrapStorageReadError("execution logs", err)
		}
		l, err := decode(data)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed execution log record", "path", p, "error", err)
			continue
		}
		if l.SprintID == sprintID {
			out = append(out, l)
		}
	}
	// ULIDs sort by creation time, which breaks ties between equal dates.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExecutionDate.Equal(out[j].ExecutionDate) {
			return out[i].ExecutionDate.After(out[j].ExecutionDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *YAMLRepository) Update(ctx context.Context, l *executionlog.Log) error {
	exists, err := r.storage.Exists(ctx, path(l.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("execution log", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "execution log not found", nil)
	}
	return r.write(ctx, l)
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.WrapStorageDeleteError("execution log", err)
	}
	return nil
}

func (r *YAMLRepository) write(ctx context.Context, l *executionlog.Log) error {
	if err := l.Validate(); err != nil {
		return cerr.NewError(cerr.InvalidArgument, err.Error(), nil)
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return cerr.WrapEncodeError("execution log", err)
	}
	if err := r.storage.Write(ctx, path(l.ID), data); err != nil {
		return cerr.WrapStorageWriteError("execution log", err)
	}
	return nil
}

func decode(data []byte) (*executionlog.Log, error) {
	var l executionlog.Log
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

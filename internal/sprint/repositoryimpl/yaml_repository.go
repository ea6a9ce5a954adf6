package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/sprintguild/internal/sprint"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/storage"
)

const sprintsPrefix = "sprints"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", sprintsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, s *sprint.Sprint) error {
	exists, err := r.storage.Exists(ctx, path(s.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("sprint", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "sprint already exists", nil)
	}
	return r.write(ctx, s)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*sprint.Sprint, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("sprint", err)
	}
	s, err := decode(data)
	if err != nil {
		return nil, cerr.WrapDecodeError("sprint", err)
	}
	return s, nil
}

func (r *YAMLRepository) List(ctx context.Context, includeHidden bool) ([]*sprint.Sprint, error) {
	paths, err := r.storage.List(ctx, sprintsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("sprints", err)
	}
	sort.Strings(paths)

	var all []*sprint.Sprint
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, cerr.WrapStorageReadError("sprints", err)
		}
		s, err := decode(data)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed sprint record", "path", p, "error", err)
			continue
		}
		if s.Hidden && !includeHidden {
			continue
		}
		all = append(all, s)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].OrderIndex != all[j].OrderIndex {
			return all[i].OrderIndex < all[j].OrderIndex
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, s *sprint.Sprint) error {
	exists, err := r.storage.Exists(ctx, path(s.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("sprint", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "sprint not found", nil)
	}
	return r.write(ctx, s)
}

func (r *YAMLRepository) write(ctx context.Context, s *sprint.Sprint) error {
	if err := s.Validate(); err != nil {
		return cerr.NewError(cerr.InvalidArgument, err.Error(), nil)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return cerr.WrapEncodeError("sprint", err)
	}
	if err := r.storage.Write(ctx, path(s.ID), data); err != nil {
		return cerr.WrapStorageWriteError("sprint", err)
	}
	return nil
}

func decode(data []byte) (*sprint.Sprint, error) {
	var s sprint.Sprint
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

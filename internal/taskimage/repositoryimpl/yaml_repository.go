package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/sprintguild/internal/taskimage"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/storage"
)

const imagesPrefix = "task_images"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", imagesPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, img *taskimage.Image) error {
	exists, err := r.storage.Exists(ctx, path(img.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task image", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "task image already exists", nil)
	}
	return r.write(ctx, img)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*taskimage.Image, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("task image", err)
	}
	img, err := decode(data)
	if err != nil {
		return nil, cerr.WrapDecodeError("task image", err)
	}
	return img, nil
}

func (r *YAMLRepository) ListByTask(ctx context.Context, taskID string) ([]*taskimage.Image, error) {
	return r.list(ctx, func(img *taskimage.Image) bool { return img.TaskID == taskID })
}

func (r *YAMLRepository) ListByDraft(ctx context.Context, draftKey string) ([]*taskimage.Image, error) {
	return r.list(ctx, func(img *taskimage.Image) bool { return img.Draft() && img.DraftKey == draftKey })
}

func (r *YAMLRepository) list(ctx context.Context, match func(*taskimage.Image) bool) ([]*taskimage.Image, error) {
	paths, err := r.storage.List(ctx, imagesPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("task images", err)
	}
	var out []*taskimage.Image
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, cerr.WrapStorageReadError("task images", err)
		}
		img, err := decode(data)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed task image record", "path", p, "error", err)
			continue
		}
		if match(img) {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *YAMLRepository) Update(ctx context.Context, img *taskimage.Image) error {
	exists, err := r.storage.Exists(ctx, path(img.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task image", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "task image not found", nil)
	}
	return r.write(ctx, img)
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.WrapStorageDeleteError("task image", err)
	}
	return nil
}

func (r *YAMLRepository) write(ctx context.Context, img *taskimage.Image) error {
	if err := img.Validate(); err != nil {
		return cerr.NewError(cerr.InvalidArgument, err.Error(), nil)
	}
	data, err := yaml.Marshal(img)
	if err != nil {
		return cerr.WrapEncodeError("task image", err)
	}
	if err := r.storage.Write(ctx, path(img.ID), data); err != nil {
		return cerr.WrapStorageWriteError("task image", err)
	}
	return nil
}

func decode(data []byte) (*taskimage.Image, error) {
	var img taskimage.Image
	if err := yaml.Unmarshal(data, &img); err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return &img, nil
}

package taskimage

import "context"

type Repository interface {
	Create(ctx context.Context, img *Image) error
	Get(ctx context.Context, id string) (*Image, error)
	ListByTask(ctx context.Context, taskID string) ([]*Image, error)
	ListByDraft(ctx context.Context, draftKey string) ([]*Image, error)
	Update(ctx context.Context, img *Image) error
	Delete(ctx context.Context, id string) error
}

package executionlog

import "context"

type Repository interface {
	Create(ctx context.Context, l *Log) error
	Get(ctx context.Context, id string) (*Log, error)
	// ListBySprint returns the sprint's logs, newest first.
	ListBySprint(ctx context.Context, sprintID string) ([]*Log, error)
	Update(ctx context.Context, l *Log) error
	Delete(ctx context.Context, id string) error
}

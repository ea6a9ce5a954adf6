package sprint

import "context"

type Repository interface {
	Create(ctx context.Context, s *Sprint) error
	Get(ctx context.Context, id string) (*Sprint, error)
	// List returns sprints ordered by OrderIndex. Hidden sprints are
	// included only when includeHidden is set.
	List(ctx context.Context, includeHidden bool) ([]*Sprint, error)
	Update(ctx context.Context, s *Sprint) error
}

package pushsubscription

import "context"

type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// List returns every subscription, oldest first.
	List(ctx context.Context) ([]*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	Delete(ctx context.Context, id string) error
	// FindByEndpoint returns a NotFound error when no subscription uses the
	// endpoint.
	FindByEndpoint(ctx context.Context, endpoint string) (*Subscription, error)
}

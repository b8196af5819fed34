package authorization

import "context"

// Service answers whether an actor may perform an action on an object
// class. Ownership of individual rows stays with the domain services;
// this layer only guards role capabilities.
type Service interface {
	Authorize(ctx context.Context, actor string, object string, action string) error
}

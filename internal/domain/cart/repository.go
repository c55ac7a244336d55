package cart

import "context"

// Repository reads and clears carts owned by the cart store. Get must return
// a single consistent snapshot; a user without a cart gets an empty one, not
// an error. Mutation paths other than Clear belong to the external cart store.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Clear(ctx context.Context, userID string) error
}

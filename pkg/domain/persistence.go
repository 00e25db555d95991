package domain

import "context"

// DatasetStore is the minimal abstraction over durable dataset backends.
// Implementations store independent copies: mutating a loaded dataset never
// affects the stored one.
type DatasetStore interface {
	// Save stores ds under name, replacing any previous value.
	Save(ctx context.Context, name string, ds Dataset) error
	// Load returns the dataset stored under name or ErrNotFound.
	Load(ctx context.Context, name string) (Dataset, error)
	// List returns the stored names in ascending order.
	List(ctx context.Context) ([]string, error)
	// Delete removes name, returning false if it did not exist.
	Delete(ctx context.Context, name string) (bool, error)
}

package obligation

import "context"

// Repository persists obligations across the base, extension and risk
// association tables.
type Repository interface {
	// Save inserts o when its id is 0 and assigns the new id, otherwise it
	// updates the stored rows and replaces the covered risk set.
	Save(ctx context.Context, o Obligation) error
	FindByID(ctx context.Context, id int64) (Obligation, error)
	FindAll(ctx context.Context) ([]Obligation, error)
	FindByStatus(ctx context.Context, status Status) ([]Obligation, error)
	FindByType(ctx context.Context, t Type) ([]Obligation, error)
	// Delete reports false when no obligation with id exists.
	Delete(ctx context.Context, id int64) (bool, error)
}

package derivative

import (
	"context"

	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
)

// Repository persists derivatives and their obligation associations.
type Repository interface {
	// Save inserts or updates d, first saving any obligation without an id.
	Save(ctx context.Context, d *Derivative) error
	FindByID(ctx context.Context, id int64) (*Derivative, error)
	FindAll(ctx context.Context) ([]*Derivative, error)
	FindByName(ctx context.Context, substring string) ([]*Derivative, error)
	FindByTotalValueRange(ctx context.Context, min, max float64) ([]*Derivative, error)
	// Delete removes the derivative and its associations, never the obligations.
	Delete(ctx context.Context, id int64) (bool, error)
}

// ObligationRepository is the full obligation port. It is declared here
// because SaveToDerivative names *Derivative and the obligation package
// cannot import this one.
type ObligationRepository interface {
	obligation.Repository
	// SaveToDerivative saves o, adds it to d and saves d as one unit of
	// work. On failure d keeps its previous obligations.
	SaveToDerivative(ctx context.Context, o obligation.Obligation, d *Derivative) error
}

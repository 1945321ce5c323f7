package risk

import "context"

// Repository persists the risk catalogue.
type Repository interface {
	// Save inserts r or updates the row with the same code.
	Save(ctx context.Context, r Risk) error
	FindByCode(ctx context.Context, code string) (Risk, error)
	FindAll(ctx context.Context) ([]Risk, error)
	FindByCategory(ctx context.Context, c Category) ([]Risk, error)
	// FindByNamePattern matches name case-insensitively against a substring.
	FindByNamePattern(ctx context.Context, pattern string) ([]Risk, error)
	// FindByRiskFactorRange is inclusive on both ends.
	FindByRiskFactorRange(ctx context.Context, min, max float64) ([]Risk, error)
	FindByObligationID(ctx context.Context, obligationID int64) ([]Risk, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	// Delete fails with a conflict while any obligation still covers the risk.
	Delete(ctx context.Context, code string) (bool, error)
	// SeedStandard inserts the standard risks that are not present yet and
	// returns how many rows were written.
	SeedStandard(ctx context.Context) (int, error)
}

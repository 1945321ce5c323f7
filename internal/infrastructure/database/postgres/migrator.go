package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationState describes the schema version recorded by golang-migrate.
type MigrationState struct {
	Version uint
	Dirty   bool
}

// Migrator applies the embedded schema migrations. Each call opens and
// closes its own connection, so it never touches a Connection pool.
type Migrator struct {
	dsn    string
	logger logging.Logger
}

// NewMigrator returns a Migrator for the database at dsn.
func NewMigrator(dsn string, log logging.Logger) *Migrator {
	return &Migrator{dsn: dsn, logger: logging.OrNop(log)}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	mg, err := migrate.NewWithSourceInstance("iofs", src, m.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mg, nil
}

func (m *Migrator) close(mg *migrate.Migrate) {
	srcErr, dbErr := mg.Close()
	if srcErr != nil || dbErr != nil {
		m.logger.Warn("Failed to close migrator",
			logging.Any("source_error", srcErr),
			logging.Any("database_error", dbErr),
		)
	}
}

// Up applies every pending migration. Nothing pending is not an error.
func (m *Migrator) Up() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer m.close(mg)

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	state, err := version(mg)
	if err != nil {
		return err
	}
	m.logger.Info("Database migrations completed",
		logging.Int64("version", int64(state.Version)),
		logging.Bool("dirty", state.Dirty),
	)
	return nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be greater than 0, got %d", steps)
	}
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer m.close(mg)

	if err := mg.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("no migrations to roll back")
		}
		return fmt.Errorf("failed to rollback %d step(s): %w", steps, err)
	}
	m.logger.Info("Rolled back migrations", logging.Int("steps", steps))
	return nil
}

// Status returns the applied version. A database without migrations
// reports version 0.
func (m *Migrator) Status() (MigrationState, error) {
	mg, err := m.open()
	if err != nil {
		return MigrationState{}, err
	}
	defer m.close(mg)
	return version(mg)
}

// Force records v as the current version and clears the dirty flag. It is
// the manual repair after a failed migration.
func (m *Migrator) Force(v int) error {
	if v < -1 {
		return fmt.Errorf("invalid migration version %d", v)
	}
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer m.close(mg)

	if err := mg.Force(v); err != nil {
		return fmt.Errorf("failed to force version %d: %w", v, err)
	}
	m.logger.Warn("Forced migration version", logging.Int("version", v))
	return nil
}

func version(mg *migrate.Migrate) (MigrationState, error) {
	v, dirty, err := mg.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return MigrationState{}, nil
		}
		return MigrationState{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return MigrationState{Version: v, Dirty: dirty}, nil
}

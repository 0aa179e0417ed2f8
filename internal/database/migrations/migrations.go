package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"ms-watchmarket/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Options controls what happens on startup.
type Options struct {
	// AutoMigrate applies pending migrations when the service starts.
	AutoMigrate bool
	// ForceDirty clears a dirty flag left by a crashed migration before retrying.
	ForceDirty bool
}

func DefaultOptions() Options {
	return Options{AutoMigrate: true}
}

// Runner applies the embedded schema migrations to Postgres.
type Runner struct {
	db       *sql.DB
	options  Options
	log      *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(db *sql.DB, opts Options, log *logger.Logger) *Runner {
	return &Runner{db: db, options: opts, log: log}
}

func (r *Runner) Initialize() error {
	source, err := iofs.New(files, "sql")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	r.migrator = migrator
	return nil
}

// Run applies pending migrations if AutoMigrate is set.
func (r *Runner) Run() error {
	if !r.options.AutoMigrate {
		r.log.Info("MIGRATE", "Auto migration disabled")
		return nil
	}
	if r.migrator == nil {
		if err := r.Initialize(); err != nil {
			return err
		}
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		if !r.options.ForceDirty {
			return fmt.Errorf("schema version %d is dirty", version)
		}
		r.log.Warn("MIGRATE", fmt.Sprintf("Forcing dirty schema version %d", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}

	if err := r.MigrateUp(); err != nil {
		return err
	}

	version, _, err = r.migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	r.log.Info("MIGRATE", fmt.Sprintf("Current schema version: %d", version))
	return nil
}

func (r *Runner) MigrateUp() error {
	if r.migrator == nil {
		if err := r.Initialize(); err != nil {
			return err
		}
	}
	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (r *Runner) MigrateDown() error {
	if r.migrator == nil {
		if err := r.Initialize(); err != nil {
			return err
		}
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateTo moves the schema up or down to version.
func (r *Runner) MigrateTo(version uint) error {
	if r.migrator == nil {
		if err := r.Initialize(); err != nil {
			return err
		}
	}
	if err := r.migrator.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("error closing migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("error closing migrator database: %w", databaseErr)
	}
	return nil
}

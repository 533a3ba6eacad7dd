package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

const embeddedDir = "sql"

// Embedded holds the billing schema compiled into the binary
//
//go:embed sql/*.sql
var Embedded embed.FS

// Migrator applies the billing schema to a postgres database
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New reads migrations from the binary
func New(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	source, err := iofs.New(Embedded, embeddedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return open(db, logger, func(driver database.Driver) (*migrate.Migrate, error) {
		return migrate.NewWithInstance("iofs", source, "postgres", driver)
	})
}

// NewFromDir reads migrations from a directory, for iterating on new ones
// before they are embedded
func NewFromDir(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	return open(db, logger, func(driver database.Driver) (*migrate.Migrate, error) {
		return migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	})
}

func open(db *sql.DB, logger *zap.Logger, build func(database.Driver) (*migrate.Migrate, error)) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := build(driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{migrate: m, logger: logger}, nil
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.apply("up", m.migrate.Up)
}

// Down reverts every applied migration
func (m *Migrator) Down() error {
	return m.apply("down", m.migrate.Down)
}

// Steps moves n migrations forward, or back when n is negative
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("steps %+d", n), func() error { return m.migrate.Steps(n) })
}

// apply runs fn, treating "nothing to do" as success, and logs the
// resulting version
func (m *Migrator) apply(action string, fn func() error) error {
	m.logger.Info("Running migrations", zap.String("action", action))
	if err := fn(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Schema already current", zap.String("action", action))
			return nil
		}
		return fmt.Errorf("migration %s failed: %w", action, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Migrations finished",
		zap.String("action", action),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

// Version returns the applied version, 0 on an empty database
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clean without running anything.
// It is the way out of a dirty state after a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and the database driver. The driver closes
// the *sql.DB it was given.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

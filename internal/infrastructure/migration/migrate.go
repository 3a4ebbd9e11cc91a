// Package migration drives golang-migrate over the embedded SQL files.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator applies schema changes to one PostgreSQL database
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New reads migrations from the root of fsys, normally migrations.FS
func New(db *sql.DB, fsys fs.FS, log *zap.Logger) (*Migrator, error) {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrator: %w", err)
	}
	return &Migrator{m: m, log: log}, nil
}

// Up applies pending migrations. An up-to-date schema is not an error.
func (g *Migrator) Up() error { return g.apply("up", g.m.Up) }

func (g *Migrator) Down() error { return g.apply("down", g.m.Down) }

// Steps moves n versions, backwards when n is negative
func (g *Migrator) Steps(n int) error {
	return g.apply(fmt.Sprintf("steps(%d)", n), func() error { return g.m.Steps(n) })
}

func (g *Migrator) apply(op string, fn func() error) error {
	switch err := fn(); {
	case errors.Is(err, migrate.ErrNoChange):
		g.log.Info("Schema already current", zap.String("op", op))
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s: %w", op, err)
	}

	version, dirty, err := g.Version()
	if err != nil {
		return err
	}
	g.log.Info("Schema migrated", zap.String("op", op), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Version is zero on a database that never ran a migration
func (g *Migrator) Version() (uint, bool, error) {
	version, dirty, err := g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("schema version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clears the dirty flag without
// running anything. Only for repairing a half-applied migration by hand.
func (g *Migrator) Force(version int) error {
	g.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := g.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	return errors.Join(srcErr, dbErr)
}

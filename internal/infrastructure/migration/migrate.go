// Package migration aplica el esquema embebido con golang-migrate sobre el driver pgx/v5.
package migration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/jhoicas/feria-api/migrations"
	"github.com/jhoicas/feria-api/pkg/logger"
)

// Migrator envoltorio de migrate.Migrate con logging.
type Migrator struct {
	m   *migrate.Migrate
	log *logger.Logger
}

// DriverURL convierte un DSN postgres:// al esquema del driver pgx/v5 de golang-migrate.
func DriverURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// New abre la fuente embebida y la base de datos indicada por dsn.
func New(dsn string, log *logger.Logger) (*Migrator, error) {
	if log == nil {
		log = logger.Nop()
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("abrir migraciones embebidas: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DriverURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("crear instancia de migrate: %w", err)
	}
	return &Migrator{m: m, log: log}, nil
}

// Up aplica las migraciones pendientes.
func (mg *Migrator) Up() error {
	err := mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.log.Info().Msg("sin migraciones pendientes")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up: %w", err)
	}
	return mg.logVersion("migraciones aplicadas")
}

// Down revierte todas las migraciones.
func (mg *Migrator) Down() error {
	err := mg.m.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.log.Info().Msg("sin migraciones que revertir")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration down: %w", err)
	}
	mg.log.Info().Msg("migraciones revertidas")
	return nil
}

// Steps aplica n pasos (negativo = hacia abajo).
func (mg *Migrator) Steps(n int) error {
	err := mg.m.Steps(n)
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration steps %d: %w", n, err)
	}
	return mg.logVersion("pasos de migración aplicados")
}

// Force fija la versión sin ejecutar SQL; sirve para limpiar un estado dirty.
func (mg *Migrator) Force(version int) error {
	mg.log.Warn().Int("version", version).Msg("forzando versión de migración")
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Version versión actual; 0 si la base está vacía.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration version: %w", err)
	}
	return v, dirty, nil
}

func (mg *Migrator) logVersion(msg string) error {
	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	mg.log.Info().Uint("version", v).Bool("dirty", dirty).Msg(msg)
	return nil
}

// Close libera fuente y conexión.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	iofs "github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"line-dify-bridge/internal/infrastructure/database/migrations"
)

const migrationsTable = "schema_migrations"

// AutoMigrate brings line_messages and the workflow tables up to the newest
// embedded migration. A dirty version left by a crashed run is forced before
// migrating so startup is never blocked by it.
func AutoMigrate(ctx context.Context, gormDB *gorm.DB, log zerolog.Logger) (err error) {
	log = log.With().Str("component", "migrate").Logger()

	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("retrieve sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("initialize postgres driver: %w", err)
	}
	defer func() {
		if closeErr := driver.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close migration connection: %w", closeErr)
		}
	}()

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	version, dirty, verErr := m.Version()
	switch {
	case errors.Is(verErr, migrate.ErrNilVersion):
		log.Info().Msg("empty schema, applying all migrations")
	case verErr != nil:
		return fmt.Errorf("read migration version: %w", verErr)
	case dirty:
		log.Warn().Uint("version", version).Msg("schema is dirty, forcing version before migrating")
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info().Uint("version", version).Msg("schema up to date")
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	default:
		current, _, _ := m.Version()
		log.Info().Uint("from", version).Uint("to", current).Msg("migrations applied")
	}
	return nil
}

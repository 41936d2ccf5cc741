package ledger

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// MigrateSQLite applies the embedded schema to the SQLite file at path. It
// uses its own connection since the migrator closes the handle it is given.
func MigrateSQLite(path string) error {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("ledger: open migration database: %w", err)
	}
	defer handle.Close()

	driver, err := sqlite.WithInstance(handle, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("ledger: create sqlite driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("ledger: create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("ledger: create migrate instance: %w", err)
	}
	defer m.Close()
	return runUp(m)
}

// MigratePostgres applies the embedded schema to the database named by dsn.
func MigratePostgres(dsn string) error {
	source, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("ledger: create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, pgx5URL(dsn))
	if err != nil {
		return fmt.Errorf("ledger: create migrate instance: %w", err)
	}
	defer m.Close()
	return runUp(m)
}

func runUp(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ledger: run migrations: %w", err)
	}
	return nil
}

// pgx5URL rewrites a postgres:// DSN to the scheme registered by the pgx/v5
// migrate driver.
func pgx5URL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

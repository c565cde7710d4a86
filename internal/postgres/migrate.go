package postgres

import (
	"context"
	"embed"
	"io"
	"io/fs"
	"sort"
	"strings"

	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     VARCHAR(255) PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// Migration is one embedded schema change
type Migration struct {
	Version string
	SQL     string
}

// Migrations returns the embedded migrations in version order
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := migrationFiles.ReadFile(name)
		if err != nil {
			return nil, err
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".up.sql")
		migrations = append(migrations, Migration{Version: version, SQL: string(data)})
	}
	return migrations, nil
}

// Migrator applies embedded migrations that are not yet recorded in
// schema_migrations, each in its own transaction
type Migrator struct {
	db     *DB
	logger *logger.Logger
}

func NewMigrator(db *DB, logger *logger.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// Up applies pending migrations and returns the versions it applied
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to prepare migrations table").
			Mark(ierr.ErrDatabase)
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(pending))
	for _, migration := range pending {
		err := m.db.WithTx(ctx, func(ctx context.Context) error {
			q := m.db.GetQuerier(ctx)
			if _, err := q.ExecContext(ctx, migration.SQL); err != nil {
				return err
			}
			_, err := q.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, migration.Version)
			return err
		})
		if err != nil {
			return applied, ierr.WithError(err).
				WithHintf("Migration %s failed", migration.Version).
				Mark(ierr.ErrDatabase)
		}

		m.logger.Infow("applied migration", "version", migration.Version)
		applied = append(applied, migration.Version)
	}
	return applied, nil
}

// Pending lists migrations not yet recorded as applied
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	all, err := Migrations()
	if err != nil {
		return nil, err
	}

	var done []string
	if err := m.db.SelectContext(ctx, &done, `SELECT version FROM schema_migrations`); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read applied migrations").
			Mark(ierr.ErrDatabase)
	}
	seen := make(map[string]struct{}, len(done))
	for _, v := range done {
		seen[v] = struct{}{}
	}

	pending := make([]Migration, 0, len(all))
	for _, migration := range all {
		if _, ok := seen[migration.Version]; !ok {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// WriteTo prints every embedded migration without touching the database
func WriteTo(w io.Writer) error {
	migrations, err := Migrations()
	if err != nil {
		return err
	}
	for _, migration := range migrations {
		if _, err := io.WriteString(w, "-- "+migration.Version+"\n"+migration.SQL+"\n"); err != nil {
			return err
		}
	}
	return nil
}

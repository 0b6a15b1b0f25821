package store

import (
	"context"
	"database/sql"
	"fmt"

	"sjsage522/pricebot/logger"
	pkgerrors "sjsage522/pricebot/pkg/errors"
)

type migration struct {
	version     int
	description string
	statements  []string
}

const createProducts = `
CREATE TABLE IF NOT EXISTS products (
	id          BIGSERIAL PRIMARY KEY,
	code        TEXT,
	name        TEXT NOT NULL,
	price       TEXT NOT NULL,
	category    TEXT NOT NULL,
	subcategory TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	source      TEXT NOT NULL,
	image       TEXT,
	link        TEXT NOT NULL,
	UNIQUE (code, source)
)`

var migrations = []migration{
	{
		version:     1,
		description: "create products",
		statements: []string{
			createProducts,
			`CREATE INDEX IF NOT EXISTS idx_products_subcategory ON products (subcategory, source)`,
		},
	},
	{
		version:     2,
		description: "trigram index on name",
		statements: []string{
			`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
			`CREATE INDEX IF NOT EXISTS idx_products_name_trgm ON products USING gin (name gin_trgm_ops)`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return pkgerrors.NewConnectivity("create schema_migrations", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
		logger.ForStore().Info().Int("version", m.version).Str("migration", m.description).Msg("Migration applied")
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 for a fresh database
func (s *Postgres) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, pkgerrors.NewStore("store", "read schema version", err)
	}
	return int(version.Int64), nil
}

func (s *Postgres) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.NewConnectivity("begin migration", err)
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return pkgerrors.NewStore("store", fmt.Sprintf("migration %d (%s)", m.version, m.description), err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
		m.version, m.description); err != nil {
		return pkgerrors.NewStore("store", "record migration", err)
	}
	return tx.Commit()
}

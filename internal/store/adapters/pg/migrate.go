package pg

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

// Migrate aplica las migraciones embebidas en orden lexicográfico, registrando
// cada archivo aplicado en schema_migrations para que sea idempotente.
func (c *pgConnection) Migrate(ctx context.Context, migFS embed.FS, dir string) error {
	_, err := c.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("pg: create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(migFS, dir)
	if err != nil {
		return fmt.Errorf("pg: read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		err := c.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, name).
			Scan(&applied)
		if err != nil {
			return fmt.Errorf("pg: check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		sql, err := migFS.ReadFile(dir + "/" + name)
		if err != nil {
			return fmt.Errorf("pg: read migration %s: %w", name, err)
		}
		if _, err := c.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("pg: apply migration %s: %w", name, err)
		}
		if _, err := c.pool.Exec(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			return fmt.Errorf("pg: record migration %s: %w", name, err)
		}
	}
	return nil
}

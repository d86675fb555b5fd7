package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rental-calendar/backend/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migration is one numbered schema change such as 001_initial.sql.
type migration struct {
	version int
	name    string
	sql     string
}

// RunMigrations brings the schema up to the newest embedded migration and
// returns the names of the migrations it applied. Each migration runs in
// its own transaction together with its schema_migrations row.
func RunMigrations(db *DB) ([]string, error) {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return nil, err
	}

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := db.Transaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.sql); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, time.Now().UTC())
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("applying migration %s: %w", m.name, err)
		}
		log.Info("migration applied", "version", m.version, "name", m.name)
		ran = append(ran, m.name)
	}

	return ran, nil
}

// SchemaVersion is the highest applied migration version, 0 for a fresh
// database.
func SchemaVersion(ctx context.Context, q Queryable) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// loadMigrations reads migrations/*.sql from fsys ordered by version.
// Every file name must start with a unique positive number.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	paths, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	byVersion := make(map[int]string, len(paths))
	migrations := make([]migration, 0, len(paths))
	for _, p := range paths {
		name := path.Base(p)
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: name must start with a positive version number", name)
		}
		if other, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		byVersion[version] = name

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		migrations = append(migrations, migration{version: version, name: name, sql: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}

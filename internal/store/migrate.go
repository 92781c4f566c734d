package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"

	"storyscape/api/internal/logging"
)

var migrationName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// ErrNoMigrationApplied is returned by RollbackLatest on an empty history.
var ErrNoMigrationApplied = errors.New("no migration applied")

// Migration is one numbered schema change. Version is the up file name,
// which is what schema_migrations records.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

// MigrationState pairs a migration with whether it has been applied.
type MigrationState struct {
	Migration
	Applied bool
}

// LoadMigrations reads the numbered up/down pairs at the root of fsys in
// version order. Other files and subdirectories are ignored.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byNumber := map[string]*Migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationName.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		contents, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		m := byNumber[match[1]]
		if m == nil {
			m = &Migration{Name: match[2]}
			byNumber[match[1]] = m
		}
		if match[3] == "up" {
			m.Version = entry.Name()
			m.Up = string(contents)
		} else {
			m.Down = string(contents)
		}
	}

	migrations := make([]Migration, 0, len(byNumber))
	for number, m := range byNumber {
		if m.Version == "" {
			return nil, fmt.Errorf("migration %s_%s has no up file", number, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// ApplyMigrations runs every pending migration in order, one transaction
// each, and records it in schema_migrations.
func ApplyMigrations(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	states, err := MigrationStatus(ctx, db, fsys)
	if err != nil {
		return err
	}

	logger := logging.FromContext(ctx)
	for _, state := range states {
		if state.Applied {
			continue
		}
		err := inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, state.Up); err != nil {
				return fmt.Errorf("execute migration %s: %w", state.Version, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, state.Version); err != nil {
				return fmt.Errorf("record migration %s: %w", state.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info("applied migration", "version", state.Version)
	}
	return nil
}

// RollbackLatest reverts the most recently applied migration that still
// exists in fsys and returns its version.
func RollbackLatest(ctx context.Context, db *sql.DB, fsys fs.FS) (string, error) {
	states, err := MigrationStatus(ctx, db, fsys)
	if err != nil {
		return "", err
	}

	for i := len(states) - 1; i >= 0; i-- {
		state := states[i]
		if !state.Applied {
			continue
		}
		if state.Down == "" {
			return "", fmt.Errorf("migration %s has no down file", state.Version)
		}
		err := inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, state.Down); err != nil {
				return fmt.Errorf("revert migration %s: %w", state.Version, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version=$1`, state.Version); err != nil {
				return fmt.Errorf("unrecord migration %s: %w", state.Version, err)
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		logging.FromContext(ctx).Info("reverted migration", "version", state.Version)
		return state.Version, nil
	}
	return "", ErrNoMigrationApplied
}

// MigrationStatus lists the migrations in fsys and marks those already
// recorded in schema_migrations.
func MigrationStatus(ctx context.Context, db *sql.DB, fsys fs.FS) ([]MigrationState, error) {
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	states := make([]MigrationState, len(migrations))
	for i, m := range migrations {
		states[i] = MigrationState{Migration: m, Applied: applied[m.Version]}
	}
	return states, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

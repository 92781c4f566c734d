package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func TestShippedMigrationsLoad(t *testing.T) {
	migrations, err := LoadMigrations(os.DirFS(filepath.Join("..", "..", "db", "migrations")))
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no migrations discovered")
	}
	for _, m := range migrations {
		if strings.TrimSpace(m.Up) == "" || strings.TrimSpace(m.Down) == "" {
			t.Errorf("%s must ship non-empty up and down files", m.Version)
		}
	}
	if migrations[0].Version != "0001_create_planning_sessions.up.sql" {
		t.Errorf("unexpected first migration %q", migrations[0].Version)
	}
}

func TestLoadMigrationsPairsAndOrders(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_story_index.up.sql": {Data: []byte("SELECT 2")},
		"0001_sessions.up.sql":    {Data: []byte("SELECT 1")},
		"0001_sessions.down.sql":  {Data: []byte("SELECT 0")},
		"README.md":               {Data: []byte("notes")},
		"archive/0000_old.up.sql": {Data: []byte("SELECT -1")},
		"0003_Bad-Name.up.sql":    {Data: []byte("SELECT 3")},
	}
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %+v", migrations)
	}

	first, second := migrations[0], migrations[1]
	if first.Version != "0001_sessions.up.sql" || first.Name != "sessions" {
		t.Errorf("unexpected first migration %+v", first)
	}
	if first.Up != "SELECT 1" || first.Down != "SELECT 0" {
		t.Errorf("up/down not paired: %+v", first)
	}
	if second.Version != "0002_story_index.up.sql" || second.Down != "" {
		t.Errorf("unexpected second migration %+v", second)
	}
}

func TestLoadMigrationsRejectsOrphanDown(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_sessions.down.sql": {Data: []byte("DROP TABLE sessions")},
	}
	if _, err := LoadMigrations(fsys); err == nil {
		t.Fatal("expected error for a down file without an up file")
	}
}

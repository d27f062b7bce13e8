package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" || m.Down == "" {
				t.Errorf("migration version %d is missing a direction", m.Version)
			}
			if m.Name == "" {
				t.Errorf("migration version %d has no name", m.Version)
			}
		}

		if migrations[0].Name != "create_shelves" {
			t.Errorf("expected first migration create_shelves, got %q", migrations[0].Name)
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 applied migrations, got %d", count)
		}

		for _, table := range []string{"shelves", "books", "shelves_sequence", "books_sequence"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback initial migration: %v", err)
		}

		if _, err := db.Exec("SELECT 1 FROM shelves LIMIT 1"); err == nil {
			t.Error("shelves table should be dropped after full rollback")
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing is left to roll back")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("second run failed: %v", err)
		}
	})

	t.Run("MigrationStatus", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		states, err := MigrationStatus(db)
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		for _, s := range states {
			if s.Applied {
				t.Errorf("migration %d should not be applied yet", s.Version)
			}
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		states, err = MigrationStatus(db)
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		for _, s := range states {
			if !s.Applied {
				t.Errorf("migration %d should be applied", s.Version)
			}
		}
	})
}

func TestRemoveComments(t *testing.T) {
	in := "-- header\nCREATE TABLE x (\n  id INTEGER -- pk\n)"
	want := "CREATE TABLE x (\nid INTEGER\n)"
	if got := removeComments(in); got != want {
		t.Errorf("removeComments() = %q, want %q", got, want)
	}
}

package shared

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupMigrationDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestMigrations(t *testing.T) {
	t.Run("LoadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i, migration := range migrations {
			if migration.Up == "" {
				t.Errorf("migration %d has empty up SQL", migration.Version)
			}
			if migration.Down == "" {
				t.Errorf("migration %d has empty down SQL", migration.Version)
			}
			if i > 0 && migrations[i-1].Version >= migration.Version {
				t.Errorf("migrations not sorted: %d before %d", migrations[i-1].Version, migration.Version)
			}
		}
	})

	t.Run("RunMigrations", func(t *testing.T) {
		db := setupMigrationDB(t)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to count applied migrations: %v", err)
		}
		if count == 0 {
			t.Error("expected applied migrations to be recorded")
		}

		// Running again should be a no-op.
		if err := RunMigrations(db); err != nil {
			t.Fatalf("re-running migrations should succeed: %v", err)
		}

		var again int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&again); err != nil {
			t.Fatalf("failed to count applied migrations: %v", err)
		}
		if again != count {
			t.Errorf("expected %d migrations after re-run, got %d", count, again)
		}
	})

	t.Run("AdaptStatement", func(t *testing.T) {
		stmt := "CREATE TABLE t (id SERIAL PRIMARY KEY, name TEXT)"

		if got := adaptStatement(stmt, true); !strings.Contains(got, "INTEGER PRIMARY KEY AUTOINCREMENT") {
			t.Errorf("expected SERIAL rewritten for sqlite, got %q", got)
		}
		if got := adaptStatement(stmt, false); got != stmt {
			t.Errorf("expected statement untouched for postgres, got %q", got)
		}
	})

	t.Run("SQLiteAssignsSerialIDs", func(t *testing.T) {
		db := setupMigrationDB(t)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		if _, err := db.Exec(`
			INSERT INTO predictions (instrument_token, tradingsymbol, omre_score, signal, last_close)
			VALUES (1, 'INFY', 0.5, 'BUY', 1500)
		`); err != nil {
			t.Fatalf("failed to insert prediction: %v", err)
		}

		var id int64
		if err := db.QueryRow("SELECT id FROM predictions WHERE tradingsymbol = 'INFY'").Scan(&id); err != nil {
			t.Fatalf("failed to read generated id: %v", err)
		}
		if id <= 0 {
			t.Errorf("expected a positive generated id, got %d", id)
		}
	})

	t.Run("RollbackMigration", func(t *testing.T) {
		db := setupMigrationDB(t)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var before int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&before); err != nil {
			t.Fatalf("failed to count migrations: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var after int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&after); err != nil {
			t.Fatalf("failed to count migrations: %v", err)
		}

		if after != before-1 {
			t.Errorf("expected %d migrations after rollback, got %d", before-1, after)
		}
	})

	t.Run("RollbackEmpty", func(t *testing.T) {
		db := setupMigrationDB(t)

		if err := createMigrationsTable(db); err != nil {
			t.Fatalf("failed to create migrations table: %v", err)
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("rollback with no applied migrations should fail")
		}
	})
}

package migrate_test

import (
	"context"
	"errors"
	"testing"

	"polling/internal/db"
	"polling/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	for i := 0; i < 2; i++ {
		if err := migrate.Migrate(ctx, conn); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}
	latest, err := migrate.Latest()
	if err != nil {
		t.Fatal(err)
	}
	got, err := migrate.Version(ctx, conn)
	if err != nil {
		t.Fatal(err)
	}
	if got != latest || latest == 0 {
		t.Fatalf("schema version = %d, want %d", got, latest)
	}
	if err := migrate.Check(ctx, conn); err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, table := range []string{"organization", "directors", "stakeholder_slots", "tasks", "task_approvals", "events"} {
		var n int
		if err := conn.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Fatalf("missing table %s", table)
		}
	}
}

func TestNewerWorkspaceSchemaIsRefused(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Check(ctx, conn); err == nil {
		t.Fatalf("expected check to fail before migrating")
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := conn.ExecContext(ctx, `UPDATE schema_version SET version=99`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := migrate.Migrate(ctx, conn); !errors.Is(err, migrate.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch from migrate, got %v", err)
	}
	if err := migrate.Check(ctx, conn); !errors.Is(err, migrate.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch from check, got %v", err)
	}
}

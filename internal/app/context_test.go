package app_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"polling/internal/app"
	"polling/internal/config"
	"polling/internal/db"
	"polling/internal/engine"
	"polling/internal/migrate"
)

const ownerHex = "0x00000000000000000000000000000000000000aa"

func newEngine(t *testing.T, workspace string) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return engine.New(conn)
}

func TestResolveOrganizationWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, dir)
	if _, err := app.ResolveOrganization(context.Background(), dir, e); !errors.Is(err, engine.ErrNotDeployed) {
		t.Fatalf("expected not deployed, got %v", err)
	}
}

func TestResolveOrganizationDeploysFromConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(config.Path(dir), []byte(config.GenerateDefault(ownerHex)), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	e := newEngine(t, dir)
	ctx := context.Background()
	org, err := app.ResolveOrganization(ctx, dir, e)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if org.Name != "Green Group LLC" || org.Owner.Address.String() != ownerHex {
		t.Fatalf("unexpected organization %+v", org)
	}
	// second resolve reads the stored organization
	again, err := app.ResolveOrganization(ctx, dir, e)
	if err != nil || again != org {
		t.Fatalf("second resolve: %+v %v", again, err)
	}
	if _, err := app.Deploy(ctx, config.Default(ownerHex), e); !errors.Is(err, engine.ErrAlreadyDeployed) {
		t.Fatalf("expected already deployed, got %v", err)
	}
}

package migrate_test

import (
	"context"
	"testing"

	"guyub/internal/db"
	"guyub/internal/migrate"
)

func TestMigrateContextCountsAppliedMigrations(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	all, err := migrate.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx := context.Background()
	applied, err := migrate.MigrateContext(ctx, conn)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if applied != len(all) {
		t.Fatalf("first run applied %d, want %d", applied, len(all))
	}
	applied, err = migrate.MigrateContext(ctx, conn)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if applied != 0 {
		t.Fatalf("second run applied %d, want 0", applied)
	}
	var version int
	if err := conn.QueryRowContext(ctx, `SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != all[len(all)-1].Version {
		t.Fatalf("schema version %d, want %d", version, all[len(all)-1].Version)
	}
}

package migrate

import (
	"context"
	"testing"

	"venturelab/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	latest, err := Latest()
	if err != nil || latest == 0 {
		t.Fatalf("latest: %d %v", latest, err)
	}
	v1, err := Migrate(ctx, conn)
	if err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	v2, err := Migrate(ctx, conn)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if v1 != latest || v2 != latest {
		t.Fatalf("expected version %d, got %d then %d", latest, v1, v2)
	}
	for _, table := range []string{"ideas", "documents", "ventures", "projects", "phases", "tasks", "events", "api_keys"} {
		var name string
		if err := conn.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestIdeaStatusCheckConstraint(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()
	if _, err := Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	_, err = conn.ExecContext(ctx, `INSERT INTO ideas(id,name,description,domain,status,created_at,updated_at) VALUES ('i1','n','d','other','archived','t','t')`)
	if err == nil {
		t.Fatalf("expected check constraint to reject unknown status")
	}
}

package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"seller-onboarding/internal/audit/domain"
	"seller-onboarding/internal/db"
	"seller-onboarding/internal/db/migrate"
)

func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		a := &domain.AuditLog{
			ID:        fmt.Sprintf("audit-%d", i),
			SessionID: "sess-a",
			Action:    "advance",
			Resource:  "registration",
			IP:        "10.0.0.1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if i == 2 {
			a.SellerID = "seller-1"
			a.Metadata = `{"to":"contact_details"}`
		}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(ctx, &domain.AuditLog{ID: "other", SessionID: "sess-b", Action: "get", Resource: "registration", CreatedAt: base}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.ListBySession(ctx, "sess-a", 2)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "audit-2" || got[1].ID != "audit-1" {
		t.Errorf("order = %s, %s; want audit-2, audit-1", got[0].ID, got[1].ID)
	}
	if got[0].SellerID != "seller-1" || got[0].Metadata != `{"to":"contact_details"}` || got[1].Metadata != "" {
		t.Errorf("fields = %+v / %+v", got[0], got[1])
	}
	if !got[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v", got[0].CreatedAt)
	}
	if none, err := repo.ListBySession(ctx, "missing", 0); err != nil || len(none) != 0 {
		t.Errorf("ListBySession(missing) = %v, %v", none, err)
	}
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}

func TestSQLiteRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	if err := migrate.Run(db.SQLiteMigrateURL(path), "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer sqlDB.Close()
	exerciseRepository(t, NewSQLiteRepository(sqlDB))
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Skipf("migrate failed: %v", err)
	}
	sqlDB, err := db.Open(dsn)
	if err != nil {
		t.Skipf("Database connection failed: %v", err)
	}
	defer sqlDB.Close()
	_, _ = sqlDB.Exec(`DELETE FROM audit_logs WHERE session_id IN ('sess-a', 'sess-b')`)
	exerciseRepository(t, NewPostgresRepository(sqlDB))
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{0: DefaultListLimit, -1: DefaultListLimit, 10: 10, 500: DefaultListLimit} {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/ppiankov/aletheia/internal/factledger"
	"github.com/ppiankov/aletheia/internal/factledger/storetest"
	"github.com/ppiankov/aletheia/internal/model"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facts.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) factledger.Store {
		return openTempStore(t)
	})
}

func TestReopenKeepsChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.db")
	ctx := context.Background()

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.StoreFact(ctx, storetest.Record("claim_1", 1, model.VerdictTrue)); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	got, err := second.GetFact(ctx, "claim_1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Version != 1 || got.Verdict != model.VerdictTrue {
		t.Errorf("unexpected record after reopen: %+v", got)
	}
	if err := second.StoreFact(ctx, storetest.Record("claim_1", 2, model.VerdictMostlyTrue)); err != nil {
		t.Errorf("expected version 2 to follow the persisted chain: %v", err)
	}
}

func TestMillisRoundTrip(t *testing.T) {
	rec := storetest.Record("claim_1", 1, model.VerdictTrue)
	if got := fromMillis(toMillis(rec.VerifiedAt)); !got.Equal(rec.VerifiedAt) {
		t.Errorf("round trip = %v, want %v", got, rec.VerifiedAt)
	}
}

func TestMigrationsRunOnce(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()

	files := fstest.MapFS{
		"001_notes.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE notes (id TEXT);\n-- +migrate Down\nDROP TABLE notes;\n")},
		"README.md":     {Data: []byte("not a migration")},
	}
	for i := 0; i < 2; i++ {
		if err := applyMigrations(ctx, sqlDB, files); err != nil {
			t.Fatalf("apply #%d: %v", i+1, err)
		}
	}

	var applied int
	if err := sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_migrations`).Scan(&applied); err != nil {
		t.Fatal(err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}

	files["001_notes.sql"] = &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE notes (id TEXT, body TEXT);\n")}
	if err := applyMigrations(ctx, sqlDB, files); err == nil {
		t.Error("expected an edited migration to be rejected")
	}
}

func TestUpSection(t *testing.T) {
	tests := map[string]string{
		"-- +migrate Up\nA\n-- +migrate Down\nB": "\nA\n",
		"-- +migrate Up\nA":                      "\nA",
		"A":                                      "A",
	}
	for in, want := range tests {
		if got := upSection(in); got != want {
			t.Errorf("upSection(%q) = %q, want %q", in, got, want)
		}
	}
}

package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/RowanDark/subcipher/internal/subst"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRecordAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := subst.New(4)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, mode := range []subst.Mode{subst.ModeEncode, subst.ModeDecode, subst.ModeEncode} {
		e := NewEntry(c, mode, SourceCLI, 10+i, 10+i)
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i == 2 {
			e.Source = SourceRecipe
			e.Recipe = "wrap"
		}
		stored, err := store.Record(ctx, e)
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if _, err := ulid.ParseStrict(stored.ID); err != nil {
			t.Fatalf("expected ULID id, got %q", stored.ID)
		}
	}

	entries, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	newest := entries[0]
	if newest.Recipe != "wrap" || newest.Source != SourceRecipe || newest.InputBytes != 12 {
		t.Fatalf("unexpected newest entry %+v", newest)
	}
	if !newest.CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected timestamp %v", newest.CreatedAt)
	}
	if entries[1].Mode != subst.ModeDecode || !entries[1].Reserved || entries[1].Seed != 4 {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
	if entries[1].Fingerprint != c.Fingerprint() {
		t.Fatalf("fingerprint mismatch")
	}

	n, err := store.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 runs, got %d (%v)", n, err)
	}
}

func TestStoreDefaults(t *testing.T) {
	store := setupTestStore(t)
	stored, err := store.Record(context.Background(), Entry{Seed: 9, Mode: subst.ModeEncode, Fingerprint: "x"})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if stored.Source != SourceCLI || stored.CreatedAt.IsZero() {
		t.Fatalf("expected defaults to be filled: %+v", stored)
	}
	entries, err := store.List(context.Background(), 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d (%v)", len(entries), err)
	}
	if entries[0].Recipe != "" {
		t.Fatalf("expected empty recipe, got %q", entries[0].Recipe)
	}
}

func TestStoreKeepsNoText(t *testing.T) {
	store := setupTestStore(t)
	rows, err := store.db.Query(`SELECT name FROM pragma_table_info('runs')`)
	if err != nil {
		t.Fatalf("table info: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		switch name.String {
		case "text", "input", "output", "plaintext", "ciphertext":
			t.Fatalf("runs table must not have a %s column", name.String)
		}
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenMemory(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if _, err := store.Record(context.Background(), Entry{Seed: 1, Mode: subst.ModeDecode, Fingerprint: "f"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

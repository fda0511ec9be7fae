package copilot

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestVscdb(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.vscdb")
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	// Mirrors VS Code's real ItemTable schema closely enough for the
	// queries this package issues.
	_, err = db.Exec(`CREATE TABLE ItemTable (key TEXT UNIQUE ON CONFLICT REPLACE, value BLOB)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return path
}

func TestReadIndexEmptyWhenKeyAbsent(t *testing.T) {
	path := newTestVscdb(t)
	idx, err := ReadIndex(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(idx.Entries) != 0 {
		t.Errorf("expected empty index, got %+v", idx.Entries)
	}
}

func TestUpsertSessionThenReadIndex(t *testing.T) {
	path := newTestVscdb(t)
	ctx := context.Background()

	entry := NewIndexEntry("my session", time.UnixMilli(1700000000000), "panel")
	if err := UpsertSession(ctx, path, "sess-1", entry); err != nil {
		t.Fatalf("UpsertSession: %v", err)
	}

	idx, err := ReadIndex(ctx, path)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	got, ok := idx.Entries["sess-1"]
	if !ok {
		t.Fatalf("expected sess-1 in index, got %+v", idx.Entries)
	}
	if got.Title != "my session" || got.InitialLocation != "panel" {
		t.Errorf("entry = %+v", got)
	}
}

func TestUpsertSessionTwicePreservesBothEntries(t *testing.T) {
	path := newTestVscdb(t)
	ctx := context.Background()

	if err := UpsertSession(ctx, path, "sess-1", NewIndexEntry("one", time.Now(), "panel")); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := UpsertSession(ctx, path, "sess-2", NewIndexEntry("two", time.Now(), "panel")); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	idx, err := ReadIndex(ctx, path)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(idx.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(idx.Entries), idx.Entries)
	}
}

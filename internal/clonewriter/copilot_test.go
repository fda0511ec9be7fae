package clonewriter

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/sessionforge/internal/adapter/copilot"
	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

func newTestIndexDB(t *testing.T, dbPath string) {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE ItemTable (key TEXT UNIQUE ON CONFLICT REPLACE, value BLOB)`); err != nil {
		t.Fatalf("create ItemTable: %v", err)
	}
}

func sampleCopilotSession() *session.CanonicalSession {
	return &session.CanonicalSession{
		Source: "copilot",
		Entries: []session.Entry{
			{Kind: session.KindUser, Timestamp: time.Now().UTC(), Message: &session.Message{Role: "user", ContentStr: "hello"}},
			{Kind: session.KindAssistant, Timestamp: time.Now().UTC(), Message: &session.Message{Role: "assistant", Blocks: []session.ContentBlock{{Kind: session.BlockText, Text: "hi there"}}}},
		},
	}
}

func TestWriteCopilotSession(t *testing.T) {
	base := t.TempDir()
	workspaceHash := "xyz987uvw654rst321"
	wsDir := filepath.Join(base, workspaceHash)
	if err := os.MkdirAll(wsDir, 0o755); err != nil {
		t.Fatal(err)
	}

	dbPath := copilot.IndexPath(base, workspaceHash)
	newTestIndexDB(t, dbPath)

	sess := sampleCopilotSession()
	newID, sessPath, backupPath, err := WriteCopilotSession(context.Background(), base, workspaceHash, sess, "test chat", "panel")
	if err != nil {
		t.Fatalf("WriteCopilotSession: %v", err)
	}
	if newID == "" {
		t.Fatal("expected non-empty session id")
	}
	if _, err := os.Stat(sessPath); err != nil {
		t.Fatalf("expected session file at %s: %v", sessPath, err)
	}
	// state.vscdb already existed (with no chat history), so the first
	// write still backs it up.
	if backupPath == "" {
		t.Fatal("expected a backup to be created since state.vscdb existed")
	}
	if _, err := os.Stat(backupPath); err != nil {
		t.Fatalf("expected backup file at %s: %v", backupPath, err)
	}

	idx, err := copilot.ReadIndex(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if _, ok := idx.Entries[newID]; !ok {
		t.Fatalf("expected index to contain new session id %s", newID)
	}
}

func TestWriteCopilotSession_BackupRotation(t *testing.T) {
	base := t.TempDir()
	workspaceHash := "rotatetest"
	if err := os.MkdirAll(filepath.Join(base, workspaceHash), 0o755); err != nil {
		t.Fatal(err)
	}
	dbPath := copilot.IndexPath(base, workspaceHash)
	newTestIndexDB(t, dbPath)

	for i := 0; i < 5; i++ {
		if _, _, _, err := WriteCopilotSession(context.Background(), base, workspaceHash, sampleCopilotSession(), "chat", "panel"); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond) // ensure distinct backup timestamps
	}

	entries, err := os.ReadDir(filepath.Join(base, workspaceHash))
	if err != nil {
		t.Fatal(err)
	}
	backupCount := 0
	for _, e := range entries {
		if len(e.Name()) > len("state.vscdb.backup-") && e.Name()[:len("state.vscdb.backup-")] == "state.vscdb.backup-" {
			backupCount++
		}
	}
	if backupCount > maxBackups {
		t.Fatalf("expected at most %d backups, got %d", maxBackups, backupCount)
	}
}

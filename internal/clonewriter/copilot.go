package clonewriter

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/sessionforge/internal/adapter/copilot"
	"github.com/nextlevelbuilder/sessionforge/internal/sferrors"
	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

// maxBackups is the retention count for state.vscdb backups (spec.md
// §4.5 step 1, §5).
const maxBackups = 3

// WriteCopilotSession executes the four-step Copilot write protocol
// (spec.md §4.5): back up state.vscdb, write the new chatSessions/<id>.json
// via temp+rename, then upsert the session index inside one SQLite
// transaction. If the SQLite step fails, the JSON document written in
// step 2 is removed (best-effort) and the error is returned; the backup
// is always retained.
func WriteCopilotSession(ctx context.Context, vscodeBase, workspaceHash string, sess *session.CanonicalSession, title string, location string) (newSessionID, sessionPath, backupPath string, err error) {
	dbPath := copilot.IndexPath(vscodeBase, workspaceHash)

	backupPath, err = backupIndex(dbPath)
	if err != nil {
		return "", "", "", err
	}

	newID := uuid.NewString()
	sessionsDir := copilot.ChatSessionsDir(vscodeBase, workspaceHash)
	if err := os.MkdirAll(sessionsDir, 0o700); err != nil {
		return "", "", backupPath, sferrors.IOError("create chatSessions folder", err)
	}

	data, err := copilot.Serialize(sess)
	if err != nil {
		return "", "", backupPath, sferrors.IOError("serialize copilot session", err)
	}

	sessionPath = copilot.SessionPath(vscodeBase, workspaceHash, newID)
	if err := atomicWrite(sessionsDir, sessionPath, data, 0o600); err != nil {
		return "", "", backupPath, err
	}

	entry := copilot.NewIndexEntry(title, lastMessageTime(sess), location)
	if err := copilot.UpsertSession(ctx, dbPath, newID, entry); err != nil {
		os.Remove(sessionPath) // best-effort cleanup (spec.md §4.5 step 4)
		return "", "", backupPath, err
	}

	return newID, sessionPath, backupPath, nil
}

// backupIndex copies state.vscdb to a timestamped backup file, then
// deletes backups beyond maxBackups, oldest first (spec.md §4.5 step 1,
// §5). If state.vscdb does not exist yet (a fresh workspace with no chat
// history), no backup is made and an empty path is returned.
func backupIndex(dbPath string) (string, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", sferrors.IOError("stat state.vscdb", err)
	}

	data, err := os.ReadFile(dbPath)
	if err != nil {
		return "", sferrors.IOError("read state.vscdb for backup", err)
	}

	backupPath := dbPath + ".backup-" + time.Now().UTC().Format("20060102T150405.000000000")
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return "", sferrors.IOError("write state.vscdb backup", err)
	}

	if err := rotateBackups(filepath.Dir(dbPath), filepath.Base(dbPath)); err != nil {
		return backupPath, err
	}
	return backupPath, nil
}

func rotateBackups(dir, dbName string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return sferrors.IOError("list backups", err)
	}

	prefix := dbName + ".backup-"
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if len(e.Name()) > len(prefix) && e.Name()[:len(prefix)] == prefix {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // timestamp suffix sorts lexicographically = chronologically

	for len(names) > maxBackups {
		oldest := names[0]
		names = names[1:]
		_ = os.Remove(filepath.Join(dir, oldest)) // best-effort; a missed prune isn't fatal
	}
	return nil
}

func lastMessageTime(sess *session.CanonicalSession) time.Time {
	var latest time.Time
	for _, e := range sess.Entries {
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	if latest.IsZero() {
		latest = time.Now().UTC()
	}
	return latest
}

package copilot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/sessionforge/internal/sferrors"
)

// sessionIndexKey is the well-known ItemTable key under which the host
// editor stores the chat session index blob. This is implementation
// specific and not discoverable from the archive alone (spec.md §9 open
// question); it is a configured constant rather than a guess.
const sessionIndexKey = "interactive.sessions"

// openIndexDB opens state.vscdb with a busy timeout so a concurrent
// editor write surfaces as SQLITE_BUSY rather than blocking forever.
// Transactions begun on the handle are IMMEDIATE (_txlock), so the write
// lock is taken at BEGIN rather than at the first write.
func openIndexDB(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, sferrors.IOError("open state.vscdb", err)
	}
	return db, nil
}

// ReadIndex reads the session index blob from state.vscdb. Returns a
// zero-value index (not an error) if the key is absent, since a fresh
// workspace may not have written a chat yet.
func ReadIndex(ctx context.Context, dbPath string) (sessionIndex, error) {
	db, err := openIndexDB(dbPath)
	if err != nil {
		return sessionIndex{}, err
	}
	defer db.Close()

	return readIndexTx(ctx, db)
}

func readIndexTx(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}) (sessionIndex, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM ItemTable WHERE key = ?`, sessionIndexKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return sessionIndex{Version: 1, Entries: map[string]sessionIndexEntry{}}, nil
	}
	if err != nil {
		return sessionIndex{}, sferrors.IOError("read session index", err)
	}

	var idx sessionIndex
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		return sessionIndex{}, sferrors.IOError("decode session index", err)
	}
	if idx.Entries == nil {
		idx.Entries = map[string]sessionIndexEntry{}
	}
	return idx, nil
}

// UpsertSession opens state.vscdb, begins an immediate transaction, reads
// the current index, inserts/updates the entry for sessionID, and
// commits -- all within one transaction so the editor never observes a
// partial update (spec.md §4.5 step 3).
func UpsertSession(ctx context.Context, dbPath, sessionID string, entry sessionIndexEntry) error {
	db, err := openIndexDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		if isBusyErr(err) {
			return sferrors.WriteConflict("state.vscdb is locked", err)
		}
		return sferrors.IOError("begin state.vscdb transaction", err)
	}
	defer tx.Rollback()

	idx, err := readIndexTx(ctx, tx)
	if err != nil {
		return err
	}
	idx.Entries[sessionID] = entry

	raw, err := json.Marshal(idx)
	if err != nil {
		return sferrors.IOError("encode session index", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO ItemTable (key, value) VALUES (?, ?)`, sessionIndexKey, string(raw))
	if err != nil {
		if isBusyErr(err) {
			return sferrors.WriteConflict("state.vscdb is locked", err)
		}
		return sferrors.IOError("write session index", err)
	}

	if err := tx.Commit(); err != nil {
		if isBusyErr(err) {
			return sferrors.WriteConflict("state.vscdb is locked", err)
		}
		return sferrors.IOError("commit state.vscdb transaction", err)
	}
	return nil
}

func isBusyErr(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "busy") || strings.Contains(strings.ToLower(err.Error()), "locked")
}

// NewIndexEntry builds the index entry for a freshly written session.
func NewIndexEntry(title string, lastMessage time.Time, location string) sessionIndexEntry {
	return sessionIndexEntry{
		Title:           title,
		LastMessageDate: lastMessage.UnixMilli(),
		IsImported:      false,
		InitialLocation: location,
		IsEmpty:         false,
	}
}

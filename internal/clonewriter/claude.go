// Package clonewriter implements the C9 atomic clone writer: rename-based
// writes for the Claude JSONL store, and a backed-up,
// transactional two-artefact write for the Copilot JSON+SQLite store
// (spec.md §4.5).
//
// The temp-file-then-rename shape is grounded on the teacher's
// sessions/manager.go persistence helper (Save: write to a temp path in
// the same directory, fsync, os.Rename into place) -- the only place in
// the teacher repo that durably persists a file to disk.
package clonewriter

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/sessionforge/internal/adapter/claude"
	"github.com/nextlevelbuilder/sessionforge/internal/pathcodec"
	"github.com/nextlevelbuilder/sessionforge/internal/sferrors"
	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

// WriteClaudeSession serialises sess and writes it to
// <claudeBase>/projects/<folder>/<newUUID>.jsonl via temp file + fsync +
// rename, with file mode 0600 (spec.md §4.5). folder is the on-disk
// project folder (pathcodec authority, never the decoded display path).
// Returns the new session id and the path written.
func WriteClaudeSession(claudeBase, folder string, sess *session.CanonicalSession) (newSessionID, path string, err error) {
	dir := filepath.Join(pathcodec.ClaudeProjectsDir(claudeBase), folder)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", sferrors.IOError("create project folder", err)
	}

	data, err := claude.Serialize(sess)
	if err != nil {
		return "", "", sferrors.IOError("serialize session", err)
	}

	newID := uuid.NewString()
	target := filepath.Join(dir, newID+".jsonl")

	if err := atomicWrite(dir, target, data, 0o600); err != nil {
		return "", "", err
	}
	return newID, target, nil
}

// atomicWrite writes data to a temp file inside dir, fsyncs it, then
// renames it into place at target.
func atomicWrite(dir, target string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(dir, ".clone-*.tmp")
	if err != nil {
		return sferrors.IOError("create temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return sferrors.IOError("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return sferrors.IOError("fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return sferrors.IOError("close temp file", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return sferrors.IOError("chmod temp file", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return sferrors.IOError("rename into place", err)
	}
	return nil
}

package discovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeClaudeSessionFile(t *testing.T, dir, id, cwd string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	lines := []string{
		`{"type":"user","uuid":"u1","cwd":"` + cwd + `","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"hello"}}`,
		`{"type":"assistant","uuid":"a1","parentUuid":"u1","timestamp":"2026-01-01T00:00:01Z","message":{"role":"assistant","content":"hi"}}`,
	}
	data := ""
	for _, l := range lines {
		data += l + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, id+".jsonl"), []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestListClaudeProjectsAndSessions(t *testing.T) {
	base := t.TempDir()
	folder := "-home-dev-project"
	sessDir := filepath.Join(base, "projects", folder)
	writeClaudeSessionFile(t, sessDir, "session-1", "/home/dev/project")

	projects, err := ListClaudeProjects(base)
	if err != nil {
		t.Fatalf("ListClaudeProjects: %v", err)
	}
	if len(projects) != 1 || projects[0].Folder != folder {
		t.Fatalf("unexpected projects: %+v", projects)
	}
	if projects[0].Path != "/home/dev/project" {
		t.Fatalf("unexpected decoded path: %q", projects[0].Path)
	}

	sessions, err := ListClaudeSessions(base, folder)
	if err != nil {
		t.Fatalf("ListClaudeSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].ID != "session-1" {
		t.Fatalf("unexpected id %q", sessions[0].ID)
	}
	if sessions[0].FirstMessage != "hello" {
		t.Fatalf("unexpected first message %q", sessions[0].FirstMessage)
	}
	if sessions[0].TurnCount != 1 {
		t.Fatalf("expected 1 turn, got %d", sessions[0].TurnCount)
	}
}

func TestListClaudeProjects_MissingBase(t *testing.T) {
	projects, err := ListClaudeProjects(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("expected no error for missing base, got %v", err)
	}
	if projects != nil {
		t.Fatalf("expected nil projects, got %+v", projects)
	}
}

func TestListClaudeSessions_SortedDescending(t *testing.T) {
	base := t.TempDir()
	folder := "-home-dev-project"
	sessDir := filepath.Join(base, "projects", folder)
	writeClaudeSessionFile(t, sessDir, "older", "/home/dev/project")
	writeClaudeSessionFile(t, sessDir, "newer", "/home/dev/project")

	older := filepath.Join(sessDir, "older.jsonl")
	newer := filepath.Join(sessDir, "newer.jsonl")
	now := time.Now()
	os.Chtimes(older, now.Add(-time.Hour), now.Add(-time.Hour))
	os.Chtimes(newer, now, now)

	sessions, err := ListClaudeSessions(base, folder)
	if err != nil {
		t.Fatalf("ListClaudeSessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "newer" {
		t.Fatalf("expected newer session first, got %+v", sessions)
	}
}

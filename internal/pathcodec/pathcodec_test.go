package pathcodec

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeClaudeFolder(t *testing.T) {
	got := EncodeClaudeFolder("/home/user/my-project")
	want := "-home-user-my-project"
	if got != want {
		t.Fatalf("EncodeClaudeFolder = %q, want %q", got, want)
	}
}

func TestDecodeClaudeFolderLossyRoundTrip(t *testing.T) {
	// Dashes in the original path are indistinguishable from separators,
	// so decode is best-effort display only, not a true inverse.
	encoded := EncodeClaudeFolder("/home/user/my-project")
	decoded := DecodeClaudeFolder(encoded)
	if decoded != "/home/user/my/project" {
		t.Fatalf("DecodeClaudeFolder = %q, want lossy /home/user/my/project", decoded)
	}
}

func TestURIToPath(t *testing.T) {
	got := URIToPath("file:///Users/dev/repo")
	if got != "/Users/dev/repo" {
		t.Fatalf("URIToPath = %q", got)
	}
	if got := URIToPath("/already/a/path"); got != "/already/a/path" {
		t.Fatalf("URIToPath passthrough = %q", got)
	}
}

func TestResolveWorkspaceFolder(t *testing.T) {
	dir := t.TempDir()
	hash := "abc123"
	wsDir := filepath.Join(dir, hash)
	if err := os.MkdirAll(wsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(map[string]string{"folder": "file:///Users/dev/repo"})
	if err := os.WriteFile(filepath.Join(wsDir, "workspace.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	folder, err := ResolveWorkspaceFolder(dir, hash)
	if err != nil {
		t.Fatalf("ResolveWorkspaceFolder: %v", err)
	}
	if folder != "/Users/dev/repo" {
		t.Fatalf("folder = %q", folder)
	}

	gotHash, gotBase, ok := FindWorkspaceHash([]string{dir}, "/Users/dev/repo")
	if !ok || gotHash != hash || gotBase != dir {
		t.Fatalf("FindWorkspaceHash = (%q, %q, %v)", gotHash, gotBase, ok)
	}

	if _, _, ok := FindWorkspaceHash([]string{dir}, "/no/match"); ok {
		t.Fatal("expected no match for unrelated repo root")
	}
}

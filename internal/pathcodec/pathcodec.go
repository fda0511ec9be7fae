// Package pathcodec encodes and decodes project paths between their
// filesystem form and the folder-name form each source uses on disk:
// Claude Code substitutes "/" with "-" in the cwd; Copilot hashes the
// workspace folder into an opaque directory name resolved via
// workspace.json. Both mappings are lossy in one direction — see
// DESIGN.md and spec.md §9.
package pathcodec

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// EncodeClaudeFolder turns an absolute cwd into the Claude projects
// folder name by replacing every "/" with "-". A leading "/" becomes a
// leading "-".
func EncodeClaudeFolder(cwd string) string {
	return strings.ReplaceAll(cwd, "/", "-")
}

// DecodeClaudeFolder best-effort reverses EncodeClaudeFolder. The mapping
// is ambiguous whenever the original path contained a literal "-", so this
// is display-only; callers must keep the on-disk folder name as the
// authority for filesystem operations (spec.md §9).
func DecodeClaudeFolder(folder string) string {
	if folder == "" {
		return folder
	}
	decoded := strings.ReplaceAll(folder, "-", "/")
	if strings.HasPrefix(decoded, "//") {
		decoded = decoded[1:]
	}
	return decoded
}

// ClaudeProjectsDir returns <claudeBase>/projects.
func ClaudeProjectsDir(claudeBase string) string {
	return filepath.Join(claudeBase, "projects")
}

// DefaultClaudeBase returns the default Claude base directory
// (user-home/.claude), honoring CLAUDE_DIR when set.
func DefaultClaudeBase() string {
	if v := os.Getenv("CLAUDE_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}

// workspaceFile mirrors Copilot's workspace.json shape.
type workspaceFile struct {
	Folder string `json:"folder"`
}

// DefaultVSCodeStorageBases returns the platform-specific workspaceStorage
// directories to search, covering both VS Code and VS Code Insiders,
// honoring VSCODE_STORAGE_PATH when set (it overrides platform discovery
// entirely with a single directory).
func DefaultVSCodeStorageBases() []string {
	if v := os.Getenv("VSCODE_STORAGE_PATH"); v != "" {
		return []string{v}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		appSupport := filepath.Join(home, "Library", "Application Support")
		return []string{
			filepath.Join(appSupport, "Code", "User", "workspaceStorage"),
			filepath.Join(appSupport, "Code - Insiders", "User", "workspaceStorage"),
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return []string{
			filepath.Join(appData, "Code", "User", "workspaceStorage"),
			filepath.Join(appData, "Code - Insiders", "User", "workspaceStorage"),
		}
	default: // linux and others
		configDir := filepath.Join(home, ".config")
		return []string{
			filepath.Join(configDir, "Code", "User", "workspaceStorage"),
			filepath.Join(configDir, "Code - Insiders", "User", "workspaceStorage"),
		}
	}
}

// URIToPath converts a file:// URI (as stored in workspace.json) to a
// local filesystem path. Non-file URIs are returned unchanged.
func URIToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return u.Path
}

// ResolveWorkspaceFolder reads <base>/<workspaceHash>/workspace.json and
// returns the human-readable folder path it maps to.
func ResolveWorkspaceFolder(storageBase, workspaceHash string) (string, error) {
	data, err := os.ReadFile(filepath.Join(storageBase, workspaceHash, "workspace.json"))
	if err != nil {
		return "", err
	}
	var ws workspaceFile
	if err := json.Unmarshal(data, &ws); err != nil {
		return "", err
	}
	return URIToPath(ws.Folder), nil
}

// FindWorkspaceHash searches every base directory for a workspace.json
// whose folder matches repoRoot exactly, returning the workspace hash
// (the directory name) and the base it was found under. Returns ("", "", false)
// if none match.
func FindWorkspaceHash(bases []string, repoRoot string) (hash string, base string, ok bool) {
	for _, b := range bases {
		entries, err := os.ReadDir(b)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			folder, err := ResolveWorkspaceFolder(b, entry.Name())
			if err != nil {
				continue
			}
			if folder == repoRoot {
				return entry.Name(), b, true
			}
		}
	}
	return "", "", false
}

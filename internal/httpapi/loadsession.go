package httpapi

import (
	"path/filepath"

	"github.com/nextlevelbuilder/sessionforge/internal/adapter/claude"
	"github.com/nextlevelbuilder/sessionforge/internal/adapter/copilot"
	"github.com/nextlevelbuilder/sessionforge/internal/pathcodec"
	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

func claudeParse(claudeBase, folder, id string) (*session.CanonicalSession, error) {
	path := filepath.Join(pathcodec.ClaudeProjectsDir(claudeBase), folder, id+".jsonl")
	return claude.Parse(path)
}

func copilotParse(vscodeBase, workspaceHash, id string) (*session.CanonicalSession, error) {
	path := copilot.SessionPath(vscodeBase, workspaceHash, id)
	return copilot.Parse(path, id)
}

package copilot

import (
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/sessionforge/internal/pathcodec"
	"github.com/nextlevelbuilder/sessionforge/internal/sferrors"
)

// WorkspaceFolder reads workspace.json for a given workspace hash and
// returns the decoded local folder path.
func WorkspaceFolder(vscodeBase, workspaceHash string) (string, error) {
	folder, err := pathcodec.ResolveWorkspaceFolder(vscodeBase, workspaceHash)
	if err != nil {
		if os.IsNotExist(err) {
			return "", sferrors.NotFound("workspace.json not found", err)
		}
		return "", sferrors.IOError("read workspace.json", err)
	}
	return folder, nil
}

// ChatSessionsDir returns the directory holding a workspace's session
// documents.
func ChatSessionsDir(vscodeBase, workspaceHash string) string {
	return filepath.Join(vscodeBase, workspaceHash, "chatSessions")
}

// SessionPath returns the path to one session document.
func SessionPath(vscodeBase, workspaceHash, sessionID string) string {
	return filepath.Join(ChatSessionsDir(vscodeBase, workspaceHash), sessionID+".json")
}

// IndexPath returns the path to a workspace's state.vscdb.
func IndexPath(vscodeBase, workspaceHash string) string {
	return filepath.Join(vscodeBase, workspaceHash, "state.vscdb")
}

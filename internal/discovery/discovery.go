// Package discovery implements C10: listing the projects/workspaces and
// sessions available in each source, with the lightweight metadata
// (first message, mtime, size, turn count) the §6 HTTP contract's
// SessionSummary needs without requiring a caller to parse every session
// up front.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/sessionforge/internal/adapter/claude"
	"github.com/nextlevelbuilder/sessionforge/internal/adapter/copilot"
	"github.com/nextlevelbuilder/sessionforge/internal/pathcodec"
	"github.com/nextlevelbuilder/sessionforge/internal/session"
	"github.com/nextlevelbuilder/sessionforge/internal/sferrors"
	"github.com/nextlevelbuilder/sessionforge/internal/turns"
)

const sessionFileExt = ".jsonl"

// ListClaudeProjects lists every project folder under
// <claudeBase>/projects, decoding each folder name to a display path
// (pathcodec.DecodeClaudeFolder; lossy, display-only -- spec.md §9).
func ListClaudeProjects(claudeBase string) ([]session.ProjectRef, error) {
	projectsDir := pathcodec.ClaudeProjectsDir(claudeBase)
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, sferrors.IOError("list claude projects", err)
	}

	var projects []session.ProjectRef
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		projects = append(projects, session.ProjectRef{
			Folder: e.Name(),
			Path:   pathcodec.DecodeClaudeFolder(e.Name()),
		})
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Folder < projects[j].Folder })
	return projects, nil
}

// ListClaudeSessions lists every session file under a project folder,
// sorted by LastModifiedAt descending (spec.md §6).
func ListClaudeSessions(claudeBase, folder string) ([]session.SessionSummary, error) {
	dir := filepath.Join(pathcodec.ClaudeProjectsDir(claudeBase), folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sferrors.NotFound("project folder not found", err)
		}
		return nil, sferrors.IOError("list claude sessions", err)
	}

	var summaries []session.SessionSummary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sessionFileExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), sessionFileExt)
		info, err := e.Info()
		if err != nil {
			continue
		}

		summary := session.SessionSummary{
			ID:             id,
			LastModifiedAt: info.ModTime(),
			SizeBytes:      info.Size(),
		}
		if sess, err := claude.Parse(filepath.Join(dir, e.Name())); err == nil {
			fillSummaryFromSession(&summary, sess)
		}
		summaries = append(summaries, summary)
	}
	sortSummariesDescending(summaries)
	return summaries, nil
}

// ListCopilotWorkspaces lists every workspace directory under the given
// VS Code storage bases, resolving each to its human folder path via
// workspace.json.
func ListCopilotWorkspaces(bases []string) ([]session.ProjectRef, error) {
	var projects []session.ProjectRef
	seen := map[string]bool{}

	for _, base := range bases {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue // a missing VS Code install is not an error (spec.md §7 SourceUnavailable is for the caller to decide)
		}
		for _, e := range entries {
			if !e.IsDir() || seen[e.Name()] {
				continue
			}
			folder, err := copilot.WorkspaceFolder(base, e.Name())
			if err != nil {
				continue
			}
			projects = append(projects, session.ProjectRef{Folder: e.Name(), Path: folder})
			seen[e.Name()] = true
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Folder < projects[j].Folder })
	return projects, nil
}

// ListCopilotSessions lists every chat session document for a workspace
// hash, sorted by LastModifiedAt descending.
func ListCopilotSessions(vscodeBase, workspaceHash string) ([]session.SessionSummary, error) {
	dir := copilot.ChatSessionsDir(vscodeBase, workspaceHash)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sferrors.NotFound("workspace has no chat sessions", err)
		}
		return nil, sferrors.IOError("list copilot sessions", err)
	}

	var summaries []session.SessionSummary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		info, err := e.Info()
		if err != nil {
			continue
		}

		summary := session.SessionSummary{
			ID:             id,
			LastModifiedAt: info.ModTime(),
			SizeBytes:      info.Size(),
		}
		if sess, err := copilot.Parse(filepath.Join(dir, e.Name()), id); err == nil {
			fillSummaryFromSession(&summary, sess)
		}
		summaries = append(summaries, summary)
	}
	sortSummariesDescending(summaries)
	return summaries, nil
}

func fillSummaryFromSession(summary *session.SessionSummary, sess *session.CanonicalSession) {
	allTurns := turns.Segment(sess)
	summary.TurnCount = len(allTurns)
	if len(allTurns) > 0 {
		content := turns.ExtractContent(sess, allTurns[0])
		summary.FirstMessage = content.UserPrompt
	}
}

func sortSummariesDescending(summaries []session.SessionSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastModifiedAt.After(summaries[j].LastModifiedAt)
	})
}

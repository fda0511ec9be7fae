// Package httpapi implements the HTTP surface spec.md §6 describes as
// "consumed by the external router": a concrete, runnable ServeMux
// exposing project/session discovery, turn inspection, and clone
// endpoints, grounded on the teacher's internal/http/agents.go
// (writeJSON helper, literal http.StatusX codes per call site) and
// internal/gateway/server.go (ServeMux wiring, slog startup logging).
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/sessionforge/internal/compress"
	"github.com/nextlevelbuilder/sessionforge/internal/config"
	"github.com/nextlevelbuilder/sessionforge/internal/discovery"
	"github.com/nextlevelbuilder/sessionforge/internal/pathcodec"
	"github.com/nextlevelbuilder/sessionforge/internal/pipeline"
	"github.com/nextlevelbuilder/sessionforge/internal/removal"
	"github.com/nextlevelbuilder/sessionforge/internal/session"
	"github.com/nextlevelbuilder/sessionforge/internal/sferrors"
	"github.com/nextlevelbuilder/sessionforge/internal/turns"
)

// Server serves the §6 HTTP contract over a *config.Config.
type Server struct {
	cfg *config.Config

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates an httpapi Server bound to cfg.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// BuildMux creates and caches the route table.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/{folder}/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/session/{id}/turns", s.handleSessionTurns)
	mux.HandleFunc("POST /api/clone", s.handleCloneClaude)
	mux.HandleFunc("POST /api/copilot/clone", s.handleCloneCopilot)
	s.mux = mux
	return mux
}

// Start blocks serving on cfg.Gateway.Host:Port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()
	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	slog.Info("httpapi starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("httpapi server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListProjects serves GET /api/projects?source={claude|copilot}.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	switch source {
	case "copilot":
		projects, err := discovery.ListCopilotWorkspaces(s.cfg.VSCodeStorageBases())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
	case "claude", "":
		projects, err := discovery.ListClaudeProjects(s.cfg.ClaudeDir)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source must be claude or copilot"})
	}
}

// handleListSessions serves GET /api/projects/:folder/sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	folder := r.PathValue("folder")
	source := r.URL.Query().Get("source")

	var sessions []session.SessionSummary
	var path string
	var err error

	if source == "copilot" {
		sessions, err = discovery.ListCopilotSessions(firstBase(s.cfg.VSCodeStorageBases()), folder)
		if err == nil {
			path, err = copilotFolderPath(s.cfg, folder)
		}
	} else {
		sessions, err = discovery.ListClaudeSessions(s.cfg.ClaudeDir, folder)
		path = pathcodec.DecodeClaudeFolder(folder)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"folder":   folder,
		"path":     path,
		"sessions": sessions,
	})
}

func copilotFolderPath(cfg *config.Config, hash string) (string, error) {
	for _, base := range cfg.VSCodeStorageBases() {
		if folder, err := pathcodec.ResolveWorkspaceFolder(base, hash); err == nil {
			return folder, nil
		}
	}
	return "", nil
}

func firstBase(bases []string) string {
	if len(bases) == 0 {
		return ""
	}
	return bases[0]
}

// handleSessionTurns serves GET /api/session/:id/turns?source=&folder=.
func (s *Server) handleSessionTurns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := pipeline.ValidateSessionID(id); err != nil {
		writeError(w, err)
		return
	}

	source := r.URL.Query().Get("source")
	folder := r.URL.Query().Get("folder")

	sess, err := loadSession(s.cfg, source, folder, id)
	if err != nil {
		writeError(w, err)
		return
	}

	allTurns := turns.Segment(sess)
	cumulative := turns.Cumulative(sess, allTurns)

	type turnView struct {
		TurnIndex  int                  `json:"turnIndex"`
		Cumulative session.TokensByType `json:"cumulative"`
		Content    session.TurnContent  `json:"content"`
	}
	views := make([]turnView, len(allTurns))
	for i, t := range allTurns {
		views[i] = turnView{
			TurnIndex:  i,
			Cumulative: cumulative[i],
			Content:    turns.ExtractContent(sess, t),
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":  id,
		"totalTurns": len(allTurns),
		"turns":      views,
	})
}

func loadSession(cfg *config.Config, source, folder, id string) (*session.CanonicalSession, error) {
	if source == "copilot" {
		base := firstBase(cfg.VSCodeStorageBases())
		return copilotParse(base, folder, id)
	}
	return claudeParse(cfg.ClaudeDir, folder, id)
}

// cloneRequest mirrors spec.md §6's POST /api/clone body.
type cloneRequest struct {
	SessionID     string `json:"sessionId"`
	Folder        string `json:"folder"`
	WorkspaceHash string `json:"workspaceHash"`
	Options       struct {
		ToolRemoval         int    `json:"toolRemoval"`
		ToolHandlingMode    string `json:"toolHandlingMode"`
		ThinkingRemoval     int    `json:"thinkingRemoval"`
		CompressionBands    []struct {
			StartPercent int    `json:"startPercent"`
			EndPercent   int    `json:"endPercent"`
			Level        string `json:"level"`
		} `json:"compressionBands"`
		DebugLog            bool   `json:"debugLog"`
		WriteToDisk         bool   `json:"writeToDisk"`
		TargetWorkspaceHash string `json:"targetWorkspaceHash"`
	} `json:"options"`
}

func (req cloneRequest) toOptions() pipeline.Options {
	mode := removal.ModeRemove
	if req.Options.ToolHandlingMode == string(removal.ModeTruncate) {
		mode = removal.ModeTruncate
	}
	bands := make([]compress.Band, 0, len(req.Options.CompressionBands))
	for _, b := range req.Options.CompressionBands {
		bands = append(bands, compress.Band{
			StartPercent: b.StartPercent,
			EndPercent:   b.EndPercent,
			Level:        session.CompressionLevel(b.Level),
		})
	}
	return pipeline.Options{
		ToolRemoval:         req.Options.ToolRemoval,
		ToolHandlingMode:    mode,
		ThinkingRemoval:     req.Options.ThinkingRemoval,
		CompressionBands:    bands,
		DebugLog:            req.Options.DebugLog,
		WriteToDisk:         req.Options.WriteToDisk,
		TargetWorkspaceHash: req.Options.TargetWorkspaceHash,
	}
}

// handleCloneClaude serves POST /api/clone.
func (s *Server) handleCloneClaude(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	result, err := pipeline.CloneClaude(r.Context(), s.cfg, req.Folder, req.SessionID, req.toOptions())
	if err != nil {
		writeError(w, err)
		return
	}
	logCloneStages("claude", req.SessionID, result.Stats)
	writeJSON(w, http.StatusOK, result)
}

// handleCloneCopilot serves POST /api/copilot/clone.
func (s *Server) handleCloneCopilot(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	result, err := pipeline.CloneCopilot(r.Context(), s.cfg, req.WorkspaceHash, req.SessionID, req.toOptions())
	if err != nil {
		writeError(w, err)
		return
	}
	logCloneStages("copilot", req.SessionID, result.Stats)
	writeJSON(w, http.StatusOK, result)
}

func logCloneStages(source, sessionID string, stats session.CloneStats) {
	slog.Info("clone completed", "source", source, "session", sessionID,
		"originalTurns", stats.OriginalTurns, "clonedTurns", stats.ClonedTurns,
		"toolCallsRemoved", stats.ToolCallsRemoved, "toolCallsTruncated", stats.ToolCallsTruncated,
		"thinkingBlocksRemoved", stats.ThinkingBlocksRemoved)
	if stats.Compression != nil {
		slog.Info("compression completed", "session", sessionID,
			"messagesCompressed", stats.Compression.MessagesCompressed,
			"messagesSkipped", stats.Compression.MessagesSkipped,
			"messagesFailed", stats.Compression.MessagesFailed,
			"reductionPercent", stats.Compression.ReductionPercent)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := sferrors.StatusCode(err)
	var sfErr *sferrors.Error
	msg := err.Error()
	if errors.As(err, &sfErr) {
		msg = sfErr.Msg
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

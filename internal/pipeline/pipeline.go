// Package pipeline wires the C7 removal engine, C8 compression engine, and
// C9 clone writer into the single clone operation that spec.md §2 and §6
// describe: parse -> remove -> compress -> write. It is the one place that
// knows the order; C7/C8/C9 stay independent of each other and of the two
// source formats.
package pipeline

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nextlevelbuilder/sessionforge/internal/adapter/claude"
	"github.com/nextlevelbuilder/sessionforge/internal/adapter/copilot"
	"github.com/nextlevelbuilder/sessionforge/internal/clonewriter"
	"github.com/nextlevelbuilder/sessionforge/internal/compress"
	"github.com/nextlevelbuilder/sessionforge/internal/compress/cccli"
	"github.com/nextlevelbuilder/sessionforge/internal/compress/openrouter"
	"github.com/nextlevelbuilder/sessionforge/internal/config"
	"github.com/nextlevelbuilder/sessionforge/internal/pathcodec"
	"github.com/nextlevelbuilder/sessionforge/internal/removal"
	"github.com/nextlevelbuilder/sessionforge/internal/session"
	"github.com/nextlevelbuilder/sessionforge/internal/sferrors"
	"github.com/nextlevelbuilder/sessionforge/internal/turns"
)

var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Options controls one clone pass, mirroring spec.md §6's
// POST /api/clone request body.
type Options struct {
	ToolRemoval         int
	ToolHandlingMode    removal.HandlingMode
	ThinkingRemoval     int
	CompressionBands    []compress.Band
	DebugLog            bool
	WriteToDisk         bool
	TargetWorkspaceHash string // copilot only: clone into a different workspace
}

// ValidateSessionID gates malformed session ids before any filesystem or
// SQLite work happens (spec.md §4.1 "InvalidSessionId gate").
func ValidateSessionID(id string) error {
	if !uuidRe.MatchString(id) {
		return sferrors.InvalidSessionID(fmt.Sprintf("not a UUID: %q", id))
	}
	return nil
}

// DefaultBands builds the two-band layout spec.md §6's
// targetHeavy/targetStandard percentages describe: the oldest
// targetHeavy% of messages are heavy-compressed, the next targetStandard%
// are compressed, and the remainder is left untouched.
func DefaultBands(cfg *config.Config) []compress.Band {
	heavy := cfg.Compression.TargetHeavyPercent
	standard := cfg.Compression.TargetStandardPercent
	if heavy <= 0 && standard <= 0 {
		return nil
	}
	return []compress.Band{
		{StartPercent: 0, EndPercent: heavy, Level: session.LevelHeavyCompress},
		{StartPercent: heavy, EndPercent: heavy + standard, Level: session.LevelCompress},
	}
}

func capabilityFor(cfg *config.Config) compress.Capability {
	switch cfg.Provider.Kind {
	case config.ProviderCCCLI:
		return cccli.New(cfg.Provider.ClaudeCLIPath, cfg.Provider.LargeModel)
	default:
		return openrouter.New(cfg.Provider.OpenRouterAPIKey, cfg.Provider.OpenRouterBaseURL, cfg.Provider.SmallModel, cfg.Provider.LargeModel)
	}
}

// CloneClaude runs the full pipeline over a Claude JSONL session and,
// when opts.WriteToDisk is set, writes the clone back into the same
// project folder.
func CloneClaude(ctx context.Context, cfg *config.Config, folder, sessionID string, opts Options) (*session.CloneResult, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	path := pathcodec.ClaudeProjectsDir(cfg.ClaudeDir) + "/" + folder + "/" + sessionID + ".jsonl"
	sess, err := claude.Parse(path)
	if err != nil {
		return nil, err
	}

	result := runRemovalAndCompression(ctx, cfg, sess, opts)

	if !opts.WriteToDisk {
		return result, nil
	}
	newID, newPath, err := clonewriter.WriteClaudeSession(cfg.ClaudeDir, folder, result.Session)
	if err != nil {
		return result, err
	}
	result.SessionPath = newPath
	result.WrittenToDisk = true
	_ = newID
	return result, nil
}

// CloneCopilot runs the full pipeline over a Copilot chat session and,
// when opts.WriteToDisk is set, writes the two-artefact clone (JSON
// document + SQLite index row) into the target workspace.
func CloneCopilot(ctx context.Context, cfg *config.Config, workspaceHash, sessionID string, opts Options) (*session.CloneResult, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	base := firstVSCodeBase(cfg)
	path := copilot.SessionPath(base, workspaceHash, sessionID)
	sess, err := copilot.Parse(path, sessionID)
	if err != nil {
		return nil, err
	}

	result := runRemovalAndCompression(ctx, cfg, sess, opts)

	if !opts.WriteToDisk {
		return result, nil
	}

	targetHash := opts.TargetWorkspaceHash
	if targetHash == "" {
		targetHash = workspaceHash
	}
	title := firstTurnTitle(result.Session)
	newID, sessPath, backupPath, err := clonewriter.WriteCopilotSession(ctx, base, targetHash, result.Session, title, "panel")
	if err != nil {
		return result, err
	}
	result.SessionPath = sessPath
	result.BackupPath = backupPath
	result.WrittenToDisk = true
	_ = newID
	return result, nil
}

func firstVSCodeBase(cfg *config.Config) string {
	bases := cfg.VSCodeStorageBases()
	if len(bases) == 0 {
		return ""
	}
	return bases[0]
}

func firstTurnTitle(sess *session.CanonicalSession) string {
	allTurns := turns.Segment(sess)
	if len(allTurns) == 0 {
		return "clone"
	}
	content := turns.ExtractContent(sess, allTurns[0])
	if content.UserPrompt == "" {
		return "clone"
	}
	if len(content.UserPrompt) > 80 {
		return content.UserPrompt[:80]
	}
	return content.UserPrompt
}

// runRemovalAndCompression applies C7 then, if bands are given, C8 over
// the removal output, and assembles the CloneResult (spec.md §4.5's
// "stats" are the union of removal and compression stats).
func runRemovalAndCompression(ctx context.Context, cfg *config.Config, sess *session.CanonicalSession, opts Options) *session.CloneResult {
	before := turns.Segment(sess)

	removed, stats := removal.Apply(sess, removal.Options{
		ToolRemoval:      opts.ToolRemoval,
		ToolHandlingMode: opts.ToolHandlingMode,
		ThinkingRemoval:  opts.ThinkingRemoval,
	})
	stats.OriginalTurns = len(before)
	stats.ClonedTurns = len(turns.Segment(removed))

	final := removed
	if len(opts.CompressionBands) > 0 {
		capability := capabilityFor(cfg)
		compressCfg := compress.Config{
			Concurrency:       cfg.Compression.Concurrency,
			TimeoutInitialMs:  cfg.Compression.TimeoutInitialMs,
			MaxAttempts:       cfg.Compression.MaxAttempts,
			MinTokens:         cfg.Compression.MinTokens,
			ThinkingThreshold: cfg.Compression.ThinkingThreshold,
		}
		compressed, compressStats := compress.Run(ctx, removed, opts.CompressionBands, compressCfg, capability)
		final = compressed
		stats.Compression = &compressStats
	}

	return &session.CloneResult{
		Session: final,
		Stats:   stats,
	}
}

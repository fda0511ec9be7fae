package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/sessionforge/internal/pipeline"
	"github.com/nextlevelbuilder/sessionforge/internal/removal"
)

func cloneCmd() *cobra.Command {
	var (
		sessionID           string
		source              string
		folder              string
		workspaceHash       string
		targetWorkspaceHash string
		toolRemoval         int
		thinkingRemoval     int
		toolHandlingMode    string
		compress            bool
		write               bool
		dryRun              bool
	)

	c := &cobra.Command{
		Use:   "clone",
		Short: "Run the removal/compression pipeline over a session and optionally write the clone",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := removal.ModeRemove
			if toolHandlingMode == string(removal.ModeTruncate) {
				mode = removal.ModeTruncate
			}
			return runClone(cloneArgs{
				sessionID:           sessionID,
				source:              source,
				folder:              folder,
				workspaceHash:       workspaceHash,
				targetWorkspaceHash: targetWorkspaceHash,
				toolRemoval:         toolRemoval,
				thinkingRemoval:     thinkingRemoval,
				toolHandlingMode:    mode,
				compress:            compress,
				write:               write && !dryRun,
			})
		},
	}

	c.Flags().StringVar(&sessionID, "session", "", "session UUID (required)")
	c.Flags().StringVar(&source, "source", "claude", "session source: claude or copilot")
	c.Flags().StringVar(&folder, "folder", "", "claude project folder (encoded), required when source=claude")
	c.Flags().StringVar(&workspaceHash, "workspace-hash", "", "copilot workspace hash, required when source=copilot")
	c.Flags().StringVar(&targetWorkspaceHash, "target-workspace-hash", "", "copilot workspace hash to clone into (defaults to workspace-hash)")
	c.Flags().IntVar(&toolRemoval, "tool-removal", 0, "percent of oldest tool calls to remove/truncate")
	c.Flags().IntVar(&thinkingRemoval, "thinking-removal", 0, "percent of oldest thinking blocks to remove")
	c.Flags().StringVar(&toolHandlingMode, "tool-handling-mode", string(removal.ModeRemove), "remove or truncate")
	c.Flags().BoolVar(&compress, "compress", false, "run LLM compression using the configured provider and bands")
	c.Flags().BoolVar(&write, "write", false, "write the clone back to disk")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "run the pipeline but never write to disk, regardless of --write")
	c.MarkFlagRequired("session")
	return c
}

type cloneArgs struct {
	sessionID           string
	source              string
	folder              string
	workspaceHash       string
	targetWorkspaceHash string
	toolRemoval         int
	thinkingRemoval     int
	toolHandlingMode    removal.HandlingMode
	compress            bool
	write               bool
}

func runClone(a cloneArgs) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := pipeline.Options{
		ToolRemoval:         a.toolRemoval,
		ToolHandlingMode:    a.toolHandlingMode,
		ThinkingRemoval:     a.thinkingRemoval,
		WriteToDisk:         a.write,
		TargetWorkspaceHash: a.targetWorkspaceHash,
	}
	if a.compress {
		opts.CompressionBands = pipeline.DefaultBands(cfg)
	}

	ctx := context.Background()
	var result interface{}
	if a.source == "copilot" {
		result, err = pipeline.CloneCopilot(ctx, cfg, a.workspaceHash, a.sessionID, opts)
	} else {
		result, err = pipeline.CloneClaude(ctx, cfg, a.folder, a.sessionID, opts)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

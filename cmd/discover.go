package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/sessionforge/internal/discovery"
)

func discoverCmd() *cobra.Command {
	var source string
	c := &cobra.Command{
		Use:   "discover",
		Short: "List discoverable projects/workspaces and their sessions as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(source)
		},
	}
	c.Flags().StringVar(&source, "source", "claude", "session source: claude or copilot")
	return c
}

func runDiscover(source string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var projects interface{}
	if source == "copilot" {
		projects, err = discovery.ListCopilotWorkspaces(cfg.VSCodeStorageBases())
	} else {
		projects, err = discovery.ListClaudeProjects(cfg.ClaudeDir)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{"source": source, "projects": projects})
}

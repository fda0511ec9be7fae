package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/sessionforge/internal/config"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/sessionforge/cmd.Version=v1.0.0"
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sessionforge",
	Short: "sessionforge — rewrite Claude Code and Copilot Chat session archives",
	Long:  "sessionforge inspects, trims, and LLM-compresses Claude Code JSONL and VS Code Copilot Chat session archives, then writes the result back as a new session on disk.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: sessionforge.json5 or $SESSIONFORGE_CONFIG)")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(discoverCmd())
	rootCmd.AddCommand(cloneCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sessionforge %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("SESSIONFORGE_CONFIG"); v != "" {
		return v
	}
	return "sessionforge.json5"
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/sessionforge/internal/httpapi"
)

func serveCmd() *cobra.Command {
	var verbose bool
	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			runServe(verbose)
		},
	}
	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return c
}

func runServe(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown initiated", "signal", sig)
		cancel()
	}()

	server := httpapi.NewServer(cfg)
	if err := server.Start(ctx); err != nil {
		slog.Error("httpapi error", "error", err)
		os.Exit(1)
	}
}

// Package cmd implements the dbnotebook command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/beedev/dbnotebook/internal/app"
	"github.com/beedev/dbnotebook/internal/config"
	"github.com/beedev/dbnotebook/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "dbnotebook",
	Short: "Hierarchical retrieval index for notebook knowledge bases",
	Long: `dbnotebook maintains per-notebook document knowledge bases backed by
PostgreSQL + pgvector. Ingested documents get a hierarchical summary tree
built over their chunks, so retrieval can answer both detail questions
(from leaf chunks) and broad questions (from summary nodes).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setupApp loads configuration and wires the application. The returned
// cleanup must be called before exit.
func setupApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := a.EnsureEmbeddingConfig(ctx); err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("ensuring embedding config: %w", err)
	}
	return a, a.Close, nil
}

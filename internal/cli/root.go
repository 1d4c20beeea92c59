// Package cli holds the cobra commands of the stash binary.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/stash/internal/app"
	"github.com/MrSnakeDoc/stash/internal/config"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "stash",
	Short: "Personal bookmark manager ranked by visit frequency",
	Long: "stash keeps per-user bookmarks and tags, logs every visit and lists " +
		"bookmarks by how often they are visited. Configuration comes from STASH_* " +
		"environment variables and an optional .env file.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rescoreCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(versionCmd)
}

// openApp loads the configuration and builds the application.
func openApp(ctx context.Context) (*app.App, logger.Logger, error) {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

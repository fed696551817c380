package main

import (
	"github.com/spf13/cobra"

	"github.com/ayush/research-hub/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the research-hub CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research-hub",
		Short: "research-hub - share, discuss and analyze research",
		Long: `research-hub serves the REST API behind the research sharing app:
accounts and access control, posts, comments, bookmarks, follows and
AI-assisted analysis.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	// Environment values become flag defaults, so explicit flags win over
	// the config file and the file wins over the environment.
	config.BindFlags(cmd.PersistentFlags(), config.Load())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

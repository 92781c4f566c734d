// Package cli implements the storyscape command-line interface.
//
// The serve command runs the HTTP API; migrate applies pending SQL
// migrations and exits. Both read configuration through internal/config and
// carry a charmbracelet logger in the command context.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"storyscape/api/internal/config"
	"storyscape/api/internal/logging"
)

var (
	version = "dev"
	commit  string
)

// SetVersion records build information shown by --version.
func SetVersion(v, c string) {
	if v != "" {
		version = v
	}
	commit = c
}

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

// NewRootCommand builds the command tree. Logs go to stderr.
func NewRootCommand(stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "storyscape",
		Short:        "StoryScape relative estimation API",
		Long:         `StoryScape serves planning sessions where stories are placed on a complexity/uncertainty canvas and estimated relative to an anchor story.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.logLevel
			}
			opts.cfg = cfg

			logger := logging.New(stderr, cfg.LogLevel)
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("storyscape %s (%s)\n", version, commit))
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (default $STORYSCAPE_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	return root
}

// Execute runs the CLI until ctx is cancelled or the command returns.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stderr).ExecuteContext(ctx)
}

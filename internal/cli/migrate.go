package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storyscape/api/internal/logging"
	"storyscape/api/internal/store"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), opts, func(ctx context.Context, db *sql.DB, fsys fs.FS) error {
				if err := store.ApplyMigrations(ctx, db, fsys); err != nil {
					return err
				}
				logging.FromContext(ctx).Info("migrations up to date", "dir", opts.cfg.MigrationsDir)
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether each has been applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), opts, func(ctx context.Context, db *sql.DB, fsys fs.FS) error {
				states, err := store.MigrationStatus(ctx, db, fsys)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tSTATE")
				for _, state := range states {
					label := "pending"
					if state.Applied {
						label = "applied"
					}
					fmt.Fprintf(tw, "%s\t%s\n", state.Version, label)
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the most recently applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), opts, func(ctx context.Context, db *sql.DB, fsys fs.FS) error {
				version, err := store.RollbackLatest(ctx, db, fsys)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reverted %s\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withDB(ctx context.Context, opts *rootOptions, fn func(context.Context, *sql.DB, fs.FS) error) error {
	db, err := store.Open(ctx, opts.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db, os.DirFS(opts.cfg.MigrationsDir))
}

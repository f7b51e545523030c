package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the report cache file",
		Long: `Manage the report cache file.

The cache is a single JSON object mapping keys such as report_Sitrep to the
generated markdown. It is written by "sitroom precompute" and read by the
dashboard and "sitroom reports".`,
	}

	cmd.AddCommand(newCachePathCommand(root))
	cmd.AddCommand(newCacheClearCommand(root))

	return cmd
}

func newCachePathCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the report cache location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadProject(root)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), env.store.Path())
			return nil
		},
	}
}

func newCacheClearCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the report cache file",
		Long: `Delete the report cache file.

The dashboard then shows every report as not generated until the next
"sitroom precompute". Only a file that parses as a report cache is removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadProject(root)
			if err != nil {
				return err
			}
			if err := env.store.Clear(); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", env.store.Path())
			return nil
		},
	}
}

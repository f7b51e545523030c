package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aiwargamer/sitroom/internal/session"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

func newRunsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "View precompute run logs",
		Long: `View precompute run logs.

Run logs are NDJSON files written by "sitroom precompute --session-log". They
record the run lifecycle: start, each task start, retry and completion, the
cache write, and the final summary.`,
	}

	cmd.AddCommand(newRunsListCommand(root))
	cmd.AddCommand(newRunsViewCommand(root))

	return cmd
}

// runLogDir resolves --dir, falling back to the configured session log directory.
func runLogDir(root *rootOptions, dir string) (string, error) {
	if dir != "" {
		return filepath.Abs(dir)
	}
	env, err := loadProject(root)
	if err != nil {
		return "", err
	}
	return env.cfg.Resolve(env.cfg.Paths.SessionLogDir), nil
}

func newRunsListCommand(root *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded run logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := runLogDir(root, dir)
			if err != nil {
				return err
			}

			files, err := session.ListSessions(absDir)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("listing run logs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No run logs found.")
				return nil
			}

			width := runewidth.StringWidth("File")
			for _, f := range files {
				width = max(width, runewidth.StringWidth(f.Name))
			}
			fmt.Fprintf(out, "%s  %-8s %s\n", runewidth.FillRight("File", width), "Events", "Modified")
			fmt.Fprintln(out, "─────────────────────────────────────────────────────────────────")
			for _, f := range files {
				fmt.Fprintf(out, "%s  %-8d %s\n", runewidth.FillRight(f.Name, width), f.NumEvents, f.ModTime.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory holding run logs (default: paths.session_log_dir)")

	return cmd
}

func newRunsViewCommand(root *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Render a run log as a timeline",
		Long: `Render a run log as a timeline. The argument is a path, or a file name
inside the run log directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
				absDir, err := runLogDir(root, dir)
				if err != nil {
					return err
				}
				if candidate := filepath.Join(absDir, path); fileExists(candidate) {
					path = candidate
				}
			}

			events, err := session.ReadEvents(path)
			if err != nil {
				return err
			}
			session.RenderTimeline(cmd.OutOrStdout(), events)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory holding run logs (default: paths.session_log_dir)")

	return cmd
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

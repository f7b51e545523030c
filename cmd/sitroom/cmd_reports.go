package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aiwargamer/sitroom/internal/cache"
	"github.com/aiwargamer/sitroom/internal/catalog"
	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/orchestration"
	"github.com/aiwargamer/sitroom/internal/render"
	"github.com/aiwargamer/sitroom/internal/wizard"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

func newReportsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect and override cached reports",
		Long: `Inspect and override the entries of the report cache.

Keys have the form kind_Name, e.g. report_Sitrep or briefing_Red_Teamer. The
display form with spaces ("briefing_Red Teamer") is accepted as well.`,
	}

	cmd.AddCommand(newReportsListCommand(root))
	cmd.AddCommand(newReportsShowCommand(root))
	cmd.AddCommand(newReportsEditCommand(root))
	cmd.AddCommand(newReportsDeleteCommand(root))

	return cmd
}

func newReportsListCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every catalog task and its cache status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadProject(root)
			if err != nil {
				return err
			}
			entries, err := env.reports()
			if err != nil {
				return err
			}
			printReportList(cmd.OutOrStdout(), env.catalog, entries)
			return nil
		},
	}
}

// reportRow is one line of the reports list.
type reportRow struct {
	label  string
	key    string
	status string
	chars  int
}

func reportRows(cat *catalog.Catalog, entries map[string]string) []reportRow {
	var rows []reportRow
	known := map[string]bool{}
	for _, t := range cat.Tasks() {
		key := t.ID.CacheKey()
		known[key] = true
		row := reportRow{label: t.Icon + " " + t.ID.Name, key: key, status: "missing"}
		if content, ok := cache.Lookup(entries, key); ok {
			row.status, row.chars = contentStatus(content), len(content)
		}
		rows = append(rows, row)
	}
	for _, key := range cache.Keys(entries) {
		if known[key] {
			continue
		}
		if id, err := models.ParseCacheKey(key); err == nil && known[id.CacheKey()] {
			continue
		}
		rows = append(rows, reportRow{label: "• " + key, key: key, status: contentStatus(entries[key]), chars: len(entries[key])})
	}
	return rows
}

func contentStatus(content string) string {
	if orchestration.IsFailurePlaceholder(content) {
		return "failed"
	}
	return "ready"
}

func printReportList(out io.Writer, cat *catalog.Catalog, entries map[string]string) {
	rows := reportRows(cat, entries)

	width := runewidth.StringWidth("Report")
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r.label))
	}

	fmt.Fprintf(out, "%s  %-28s %-8s %s\n", runewidth.FillRight("Report", width), "Key", "Status", "Chars")
	fmt.Fprintln(out, strings.Repeat("─", width+50))
	for _, r := range rows {
		chars := "-"
		if r.status != "missing" {
			chars = fmt.Sprint(r.chars)
		}
		// pad on the plain status; the badge may carry escape codes
		pad := strings.Repeat(" ", max(0, 8-runewidth.StringWidth(r.status)))
		fmt.Fprintf(out, "%s  %-28s %s%s %s\n",
			runewidth.FillRight(r.label, width), r.key, render.StatusBadge(r.status), pad, chars)
	}
}

func newReportsShowCommand(root *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Render one cached report in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadProject(root)
			if err != nil {
				return err
			}
			content, err := env.store.Get(args[0])
			if err != nil {
				return fmt.Errorf("report %s: %w", args[0], err)
			}
			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), content)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), render.Terminal(content, render.TerminalWidth()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the stored markdown without rendering")

	return cmd
}

func newReportsEditCommand(root *rootOptions) *cobra.Command {
	var value, file string

	cmd := &cobra.Command{
		Use:   "edit [key]",
		Short: "Manually override one cached report",
		Long: `Overwrite one key of the report cache, leaving every other key untouched.

The new content comes from --value, --file ("-" reads stdin), or an
interactive editor when neither is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasValue := cmd.Flags().Changed("value")
			if hasValue && file != "" {
				return errors.New("--value and --file are mutually exclusive")
			}

			env, err := loadProject(root)
			if err != nil {
				return err
			}

			key := ""
			if len(args) == 1 {
				key = args[0]
			}

			switch {
			case hasValue:
			case file != "":
				value, err = readValueFile(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
			default:
				entries, err := env.reports()
				if err != nil {
					return err
				}
				override, err := wizard.EditOverride(cmd.InOrStdin(), cmd.OutOrStdout(), env.catalog, entries, key)
				if errors.Is(err, wizard.ErrAborted) {
					fmt.Fprintln(cmd.OutOrStdout(), "Override discarded.")
					return nil
				}
				if err != nil {
					return err
				}
				key, value = override.Key, override.Value
			}

			if key == "" {
				return errors.New("a report key is required with --value or --file")
			}
			if err := env.store.Edit(key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d chars) to %s\n", key, len(value), env.store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "New content for the key")
	cmd.Flags().StringVar(&file, "file", "", "Read the new content from a file, or - for stdin")

	return cmd
}

func readValueFile(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func newReportsDeleteCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove one key from the report cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadProject(root)
			if err != nil {
				return err
			}
			if err := env.store.Delete(args[0]); err != nil {
				return fmt.Errorf("deleting %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from %s\n", args[0], env.store.Path())
			return nil
		},
	}
}

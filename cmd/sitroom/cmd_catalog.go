package main

import (
	"fmt"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

func newCatalogCommand(root *rootOptions) *cobra.Command {
	var advisors bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the generation tasks and advisors",
		Long: `List the generation tasks: the situation reports first, then one briefing
per advisor. Advisor prompts come from paths.prompts_file when it exists and
is valid, otherwise from the built-in definitions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadProject(root)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if advisors {
				for _, a := range env.catalog.Advisors() {
					fmt.Fprintf(out, "%s %s\n", a.Icon, a.Name)
				}
				return nil
			}

			tasks := env.catalog.Tasks()
			width := runewidth.StringWidth("Task")
			for _, t := range tasks {
				width = max(width, runewidth.StringWidth(t.Icon+" "+t.ID.Name))
			}
			fmt.Fprintf(out, "%s  %-9s %-28s %s\n", runewidth.FillRight("Task", width), "Kind", "Key", "Words")
			for _, t := range tasks {
				words := "-"
				if t.MaxOutputWords > 0 {
					words = fmt.Sprint(t.MaxOutputWords)
				}
				fmt.Fprintf(out, "%s  %-9s %-28s %s\n",
					runewidth.FillRight(t.Icon+" "+t.ID.Name, width), t.ID.Kind, t.ID.CacheKey(), words)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&advisors, "advisors", false, "List only the chat advisors")

	return cmd
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/aiwargamer/sitroom/internal/transcript"
	"github.com/spf13/cobra"
)

func newTranscriptsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "Inspect and prepare transcript files",
	}

	cmd.AddCommand(newTranscriptsStatsCommand(root))
	cmd.AddCommand(newTranscriptsSplitCommand(root))

	return cmd
}

func newTranscriptsStatsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show what the loader reads and the size of the context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadProject(root)
			if err != nil {
				return err
			}
			corpus, err := env.loadTranscripts(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range corpus.Files {
				fmt.Fprintf(out, "✓ %s\n", f)
			}
			for _, s := range corpus.Skipped {
				fmt.Fprintf(out, "✗ %s: %v\n", s.Path, s.Err)
			}
			if corpus.Empty() {
				return fmt.Errorf("%w in %s", transcript.ErrNoData, env.cfg.Resolve(env.cfg.Paths.DataDir))
			}

			fmt.Fprintf(out, "\nEntries:  %d\n", len(corpus.Entries))
			fmt.Fprintf(out, "Chars:    %d\n", corpus.Chars)
			fmt.Fprintf(out, "Words:    %d\n", corpus.Words)
			fmt.Fprintf(out, "Tokens:   ~%d\n", corpus.Tokens)
			return nil
		},
	}
}

func newTranscriptsSplitCommand(root *rootOptions) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Split a combined transcript into one file per episode",
		Long: `Split a transcript whose entries carry an "episode" tag (such as "S2E3")
into clean_transcript_s2e<N>.json files, one per episode, keeping entry order.
Entries without a tag are reported and left out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := transcript.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("%w in %s", transcript.ErrNoData, args[0])
			}

			if outDir == "" {
				env, err := loadProject(root)
				if err != nil {
					return err
				}
				outDir = env.cfg.Resolve(env.cfg.Paths.DataDir)
			}

			groups, untagged := transcript.GroupByEpisode(entries)
			written, err := transcript.WriteEpisodes(outDir, groups)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range written {
				fmt.Fprintf(out, "Wrote %s\n", filepath.Clean(p))
			}
			if len(untagged) > 0 {
				fmt.Fprintf(out, "Skipped %d entries without an episode tag\n", len(untagged))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Output directory (default: paths.data_dir)")

	return cmd
}

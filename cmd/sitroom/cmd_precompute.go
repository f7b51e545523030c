package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/aiwargamer/sitroom/internal/execution"
	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/orchestration"
	"github.com/aiwargamer/sitroom/internal/session"
	"github.com/aiwargamer/sitroom/internal/tokens"
	"github.com/aiwargamer/sitroom/internal/transcript"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type precomputeOptions struct {
	workers    int
	only       []string
	sessionLog bool
	provider   string
	model      string
}

func newPrecomputeCommand(root *rootOptions) *cobra.Command {
	opts := &precomputeOptions{}

	cmd := &cobra.Command{
		Use:   "precompute",
		Short: "Generate every report and advisor briefing into the report cache",
		Long: `Generate every report and advisor briefing from the transcripts and write
them to the report cache.

Tasks run concurrently on a bounded worker pool. A task that fails after all
attempts is stored as a failure placeholder; the run still succeeds. The
command fails when no transcript data could be found. An interrupted run
leaves the existing cache untouched.

With --only, just the matching tasks run and their results are merged into the
existing cache; other keys are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runPrecompute(ctx, cmd.OutOrStdout(), root, opts)
		},
	}

	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Number of concurrent workers (overrides batch.workers)")
	cmd.Flags().StringArrayVar(&opts.only, "only", nil, "Only run tasks whose key or name matches this glob (can be repeated)")
	cmd.Flags().BoolVar(&opts.sessionLog, "session-log", false, "Write an NDJSON run log to the session log directory")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Generation provider: vertex, copilot or mock (overrides provider.name)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model ID (overrides provider.model)")

	return cmd
}

func runPrecompute(ctx context.Context, out io.Writer, root *rootOptions, opts *precomputeOptions) error {
	env, err := loadProject(root)
	if err != nil {
		return err
	}
	cfg := env.cfg
	if opts.workers > 0 {
		cfg.Batch.Workers = opts.workers
	}
	if opts.provider != "" {
		cfg.Provider.Name = opts.provider
	}
	if opts.model != "" {
		cfg.Provider.Model = opts.model
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	corpus, err := env.loadTranscripts(ctx)
	if err != nil {
		return err
	}
	if corpus.Empty() {
		return fmt.Errorf("%w in %s", transcript.ErrNoData, cfg.Resolve(cfg.Paths.DataDir))
	}
	fmt.Fprintf(out, "Loaded %d transcript file(s): %d chars, %d words, ~%d tokens\n",
		len(corpus.Files), corpus.Chars, corpus.Words, corpus.Tokens)
	if budget := (tokens.Budget{Tokens: corpus.Tokens, Window: cfg.Provider.ContextTokens()}); !budget.Fits() {
		slog.Warn("Transcript context may exceed the model context window",
			"tokens", budget.Tokens, "window", budget.Window, "model", cfg.Provider.Model)
		fmt.Fprintf(out, "Warning: ~%d tokens of context is %.0f%% of the %d-token window of %s; requests may be rejected\n",
			budget.Tokens, budget.Usage()*100, budget.Window, cfg.Provider.Model)
	}

	tasks, err := orchestration.FilterTasks(env.catalog.Tasks(), opts.only)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks match %v", opts.only)
	}

	gen, err := execution.New(cfg.Provider)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gen.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Provider shutdown failed", "error", err)
		}
	}()

	runID := uuid.NewString()
	runner := orchestration.NewBatchRunner(cfg.Batch, gen,
		orchestration.WithProvider(cfg.Provider.Name, cfg.Provider.Model),
		orchestration.WithRunID(runID))
	runner.OnProgress(progressPrinter(out))

	var logger session.Logger = session.NopLogger{}
	if opts.sessionLog {
		jl, err := session.NewJSONLogger(session.DefaultLogPath(cfg.Resolve(cfg.Paths.SessionLogDir), runID))
		if err != nil {
			return err
		}
		logger = jl
		fmt.Fprintf(out, "Run log: %s\n", jl.Path())
	}
	defer logger.Close()
	runner.OnProgress(session.Recorder(logger, cfg.Provider.Name, cfg.Provider.Model))

	fmt.Fprintf(out, "Running %d task(s) with %s (%s), %d worker(s)\n\n",
		len(tasks), cfg.Provider.Name, cfg.Provider.Model, cfg.Batch.Workers)

	outcome, err := runner.Run(ctx, tasks, corpus.Blob)
	if err != nil {
		logEvent(logger, session.NewEvent(session.EventError, session.ErrorData(err.Error(), nil)))
		return err
	}
	if err := ctx.Err(); err != nil {
		// Unfinished tasks hold cancellation placeholders; keep the previous cache.
		logEvent(logger, session.NewEvent(session.EventError, session.ErrorData(err.Error(), nil)))
		printDigest(out, outcome)
		return fmt.Errorf("precompute interrupted, report cache left unchanged: %w", err)
	}
	d := outcome.Digest
	logEvent(logger, session.NewEvent(session.EventRunEnd,
		session.RunCompleteData(d.TotalTasks, d.Succeeded, d.Failed, d.Attempts, d.DurationMs)))

	contents := outcome.Contents()
	if len(opts.only) > 0 {
		merged, err := env.store.Merge(contents)
		if err != nil {
			logEvent(logger, session.NewEvent(session.EventError, session.ErrorData(err.Error(), nil)))
			return err
		}
		logEvent(logger, session.NewEvent(session.EventCacheWrite, session.CacheWriteData(env.store.Path(), len(merged))))
	} else {
		if err := env.store.Save(contents); err != nil {
			logEvent(logger, session.NewEvent(session.EventError, session.ErrorData(err.Error(), nil)))
			return err
		}
		logEvent(logger, session.NewEvent(session.EventCacheWrite, session.CacheWriteData(env.store.Path(), len(contents))))
	}

	printDigest(out, outcome)
	fmt.Fprintf(out, "\nReport cache written: %s\n", env.store.Path())
	return nil
}

func logEvent(l session.Logger, ev session.Event) {
	if err := l.Log(ev); err != nil {
		slog.Warn("Failed to write run event", "type", ev.Type, "error", err)
	}
}

func progressPrinter(out io.Writer) orchestration.ProgressListener {
	var mu sync.Mutex
	return func(ev orchestration.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.EventType {
		case orchestration.EventTaskRetry:
			fmt.Fprintf(out, "↻ %s attempt %d/%d failed: %s\n", ev.TaskKey, ev.Attempt, ev.MaxAttempts, ev.Error)
		case orchestration.EventTaskComplete:
			icon := "✓"
			if ev.Status != models.StatusSucceeded {
				icon = "✗"
			}
			fmt.Fprintf(out, "%s [%d/%d] %s (%s)\n", icon, ev.Completed, ev.Total, ev.TaskKey,
				(time.Duration(ev.DurationMs) * time.Millisecond).Round(time.Millisecond))
		}
	}
}

func printDigest(out io.Writer, outcome *models.RunOutcome) {
	d := outcome.Digest
	fmt.Fprintf(out, "\nTotal Tasks:    %d\n", d.TotalTasks)
	fmt.Fprintf(out, "Succeeded:      %d\n", d.Succeeded)
	fmt.Fprintf(out, "Failed:         %d\n", d.Failed)
	fmt.Fprintf(out, "Attempts:       %d\n", d.Attempts)
	fmt.Fprintf(out, "Duration:       %v\n", time.Duration(d.DurationMs)*time.Millisecond)
	fmt.Fprintf(out, "Task time:      median %.0fms, max %dms\n", d.MedianTaskMs, d.MaxTaskMs)

	if outcome.PartialFailure() {
		fmt.Fprintln(out, "\nFailed tasks (stored as placeholders):")
		for _, key := range outcome.Keys() {
			if r := outcome.Results[key]; r.Status == models.StatusFailed {
				fmt.Fprintf(out, "  - %s: %s\n", key, r.ErrorMsg)
			}
		}
	}
}

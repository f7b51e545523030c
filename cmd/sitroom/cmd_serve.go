package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aiwargamer/sitroom/internal/cache"
	"github.com/aiwargamer/sitroom/internal/chat"
	"github.com/aiwargamer/sitroom/internal/execution"
	"github.com/aiwargamer/sitroom/internal/webapi"
	"github.com/aiwargamer/sitroom/internal/webserver"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	host           string
	port           int
	noBrowser      bool
	noChat         bool
	noWatch        bool
	allowedOrigins []string
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the briefing dashboard",
		Long: `Serve the briefing dashboard: rendered report pages, a JSON API for manual
overrides and advisor chat, and Prometheus metrics on /metrics.

Reports are read from the report cache. Unless --no-watch is set (or
server.watch is false), edits made to the cache file while the server runs are
picked up without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "127.0.0.1", "Interface to listen on")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Port to listen on (overrides server.port)")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "Do not open a browser")
	cmd.Flags().BoolVar(&opts.noChat, "no-chat", false, "Disable the advisor chat API")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not reload the cache file when it changes")
	cmd.Flags().StringArrayVar(&opts.allowedOrigins, "allow-origin", nil, "Origin allowed to call the API cross-site (can be repeated)")

	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	env, err := loadProject(root)
	if err != nil {
		return err
	}
	cfg := env.cfg

	var watcher *cache.Watcher
	if cfg.WatchEnabled() && !opts.noWatch {
		watcher, err = cache.NewWatcher(env.store)
		if err != nil {
			return fmt.Errorf("watching report cache: %w", err)
		}
		defer watcher.Close() //nolint:errcheck
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("Report cache watcher stopped", "error", err)
			}
		}()
	}

	deps := webapi.Deps{
		Reports: webapi.NewCacheStore(env.store, watcher),
		Runs:    webapi.NewLogStore(cfg.Resolve(cfg.Paths.SessionLogDir)),
		Catalog: env.catalog,
	}

	if !opts.noChat {
		corpus, err := env.loadTranscripts(ctx)
		if err != nil {
			return err
		}
		if corpus.Empty() {
			slog.Warn("No transcript data found; advisor chat runs without context")
		}
		blob := corpus.Blob

		gen, err := execution.New(cfg.Provider)
		if err != nil {
			return err
		}
		defer gen.Shutdown(context.Background()) //nolint:errcheck

		deps.Chat = chat.NewController(env.catalog, gen, chat.WithTimeout(cfg.Batch.TaskTimeout))
		deps.Context = func() string { return blob }
	}

	port := cfg.Server.Port
	if opts.port != 0 {
		port = opts.port
	}
	srv, err := webserver.New(webserver.Config{
		Host:           opts.host,
		Port:           port,
		NoBrowser:      opts.noBrowser,
		AllowedOrigins: opts.allowedOrigins,
		Logger:         slog.Default(),
		Deps:           deps,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aiwargamer/sitroom/internal/cache"
	"github.com/aiwargamer/sitroom/internal/catalog"
	"github.com/aiwargamer/sitroom/internal/projectconfig"
	"github.com/aiwargamer/sitroom/internal/transcript"
)

// projectEnv is the configuration and the collaborators every command builds from it.
type projectEnv struct {
	cfg     *projectconfig.ProjectConfig
	catalog *catalog.Catalog
	store   *cache.Store
}

func loadProject(opts *rootOptions) (*projectEnv, error) {
	cfg, err := projectconfig.Load(opts.dir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	slog.Debug("Loaded configuration", "dir", cfg.Dir(), "provider", cfg.Provider.Name, "model", cfg.Provider.Model)

	return &projectEnv{
		cfg:     cfg,
		catalog: catalog.LoadOrDefault(cfg.Resolve(cfg.Paths.PromptsFile)),
		store:   cache.NewStore(cfg.Resolve(cfg.Paths.CacheFile)),
	}, nil
}

// loadTranscripts reads the configured transcript files. Files missing from
// the data directory are also looked up in the project directory.
func (e *projectEnv) loadTranscripts(ctx context.Context) (*transcript.Corpus, error) {
	loader := transcript.NewLoader(e.cfg.TranscriptPaths(), transcript.WithFallbackDirs(e.cfg.Dir()))
	return loader.Load(ctx)
}

// reports returns the cached mapping; an absent cache is empty.
func (e *projectEnv) reports() (map[string]string, error) {
	entries, err := e.store.Load()
	if errors.Is(err, cache.ErrNotFound) {
		return map[string]string{}, nil
	}
	return entries, err
}

// Package projectconfig provides the ProjectConfig struct and loader for
// .sitroom.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aiwargamer/sitroom/internal/tokens"
	"github.com/aiwargamer/sitroom/internal/utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file searched for by Load.
const FileName = ".sitroom.yaml"

// Default values for project configuration. New() references them.
const (
	DefaultDataDir       = "data"
	DefaultCacheFile     = "intelligence_analysis.json"
	DefaultPromptsFile   = "prompts/advisor_prompts.json"
	DefaultSessionLogDir = "runs"

	DefaultProvider = "vertex"
	DefaultProject  = "ai-wargamer"
	DefaultLocation = "us-central1"
	DefaultModel    = "gemini-2.5-pro"

	DefaultWorkers     = 4
	DefaultMaxAttempts = 2
	DefaultBackoff     = 2 * time.Second
	DefaultTaskTimeout = 5 * time.Minute

	DefaultServerPort = 8501
)

// Provider names accepted in provider.name.
const (
	ProviderVertex  = "vertex"
	ProviderCopilot = "copilot"
	ProviderMock    = "mock"
)

// DefaultTranscripts lists the transcript files read from the data directory
// when the config does not name any.
var DefaultTranscripts = []string{
	"the_wargame_s2e1_transcript_cleaned.json",
	"the_wargame_s2e2_transcript_cleaned.json",
	"the_wargame_s2e3_transcript_cleaned.json",
}

// PathsConfig holds input and output locations.
type PathsConfig struct {
	DataDir       string   `yaml:"data_dir,omitempty"`
	Transcripts   []string `yaml:"transcripts,omitempty"`
	CacheFile     string   `yaml:"cache_file,omitempty"`
	PromptsFile   string   `yaml:"prompts_file,omitempty"`
	SessionLogDir string   `yaml:"session_log_dir,omitempty"`
}

// ProviderConfig selects and configures the text-generation provider.
type ProviderConfig struct {
	Name     string `yaml:"name,omitempty"`
	Project  string `yaml:"project,omitempty"`
	Location string `yaml:"location,omitempty"`
	Model    string `yaml:"model,omitempty"`
	// ContextWindow overrides the model's known input context size in tokens.
	ContextWindow int `yaml:"context_window,omitempty"`
}

// ContextTokens returns the configured context window, falling back to the
// known window of the model. Zero means unknown.
func (p ProviderConfig) ContextTokens() int {
	if p.ContextWindow > 0 {
		return p.ContextWindow
	}
	return tokens.ContextWindow(p.Model)
}

// BatchConfig holds worker-pool and retry settings for precompute runs.
type BatchConfig struct {
	Workers     int           `yaml:"workers,omitempty"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	Backoff     time.Duration `yaml:"backoff,omitempty"`
	TaskTimeout time.Duration `yaml:"task_timeout,omitempty"`
	// RateLimit caps provider requests per second across all workers. Zero disables it.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	Burst     int     `yaml:"burst,omitempty"`
}

// ServerConfig holds dashboard server settings.
type ServerConfig struct {
	Port  int   `yaml:"port,omitempty"`
	Watch *bool `yaml:"watch,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .sitroom.yaml.
type ProjectConfig struct {
	Paths    PathsConfig    `yaml:"paths,omitempty"`
	Provider ProviderConfig `yaml:"provider,omitempty"`
	Batch    BatchConfig    `yaml:"batch,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	transcripts := make([]string, len(DefaultTranscripts))
	copy(transcripts, DefaultTranscripts)

	return &ProjectConfig{
		Paths: PathsConfig{
			DataDir:       DefaultDataDir,
			Transcripts:   transcripts,
			CacheFile:     DefaultCacheFile,
			PromptsFile:   DefaultPromptsFile,
			SessionLogDir: DefaultSessionLogDir,
		},
		Provider: ProviderConfig{
			Name:     DefaultProvider,
			Project:  DefaultProject,
			Location: DefaultLocation,
			Model:    DefaultModel,
		},
		Batch: BatchConfig{
			Workers:     DefaultWorkers,
			MaxAttempts: DefaultMaxAttempts,
			Backoff:     DefaultBackoff,
			TaskTimeout: DefaultTaskTimeout,
		},
		Server: ServerConfig{
			Port:  DefaultServerPort,
			Watch: boolPtr(true),
		},
	}
}

// Load finds .sitroom.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults. A .env file next
// to the config (or in startDir) is loaded into the process environment, and
// SITROOM_* variables are applied last.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	absStart, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", startDir, err)
	}
	cfg.dir = absStart

	data, path, err := findConfigFile(absStart)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// no file found → defaults
	case err != nil:
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	default:
		var fileCfg ProjectConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		mergeConfig(cfg, &fileCfg)
		cfg.dir = filepath.Dir(path)
	}

	if err := loadDotEnv(cfg.dir); err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// Dir returns the directory relative paths are resolved against.
func (c *ProjectConfig) Dir() string {
	if c.dir == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return c.dir
}

// Resolve returns p as an absolute path, relative to the config directory.
func (c *ProjectConfig) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// TranscriptPaths returns the configured transcript files joined with the data directory.
func (c *ProjectConfig) TranscriptPaths() []string {
	return utils.ResolvePaths(c.Paths.Transcripts, c.Resolve(c.Paths.DataDir))
}

// WatchEnabled reports whether the dashboard should reload the cache file on change.
func (c *ProjectConfig) WatchEnabled() bool {
	return c.Server.Watch == nil || *c.Server.Watch
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *ProjectConfig) Validate() error {
	switch c.Provider.Name {
	case ProviderVertex, ProviderCopilot, ProviderMock:
	default:
		return fmt.Errorf("unknown provider %q (want %s, %s or %s)", c.Provider.Name, ProviderVertex, ProviderCopilot, ProviderMock)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Batch.MaxAttempts < 1 {
		return fmt.Errorf("batch.max_attempts must be at least 1, got %d", c.Batch.MaxAttempts)
	}
	if c.Batch.Backoff < 0 || c.Batch.TaskTimeout < 0 || c.Batch.RateLimit < 0 {
		return errors.New("batch durations and rate limit must not be negative")
	}
	if c.Provider.ContextWindow < 0 {
		return fmt.Errorf("provider.context_window must not be negative, got %d", c.Provider.ContextWindow)
	}
	return nil
}

// ApplyEnv overlays environment variables onto the config. lookup is usually os.LookupEnv.
func (c *ProjectConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&c.Provider.Name, "SITROOM_PROVIDER")
	str(&c.Provider.Project, "SITROOM_PROJECT", "GOOGLE_CLOUD_PROJECT")
	str(&c.Provider.Location, "SITROOM_LOCATION", "GOOGLE_CLOUD_LOCATION")
	str(&c.Provider.Model, "SITROOM_MODEL")
	str(&c.Paths.DataDir, "SITROOM_DATA_DIR")
	str(&c.Paths.CacheFile, "SITROOM_CACHE_FILE")

	if v, ok := lookup("SITROOM_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing SITROOM_WORKERS: %w", err)
		}
		c.Batch.Workers = n
	}

	return nil
}

func loadDotEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading .env: %w", err)
}

// findConfigFile walks up from dir looking for .sitroom.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, string, error) {
	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, "", os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.DataDir != "" {
		dst.Paths.DataDir = src.Paths.DataDir
	}
	if len(src.Paths.Transcripts) > 0 {
		dst.Paths.Transcripts = src.Paths.Transcripts
	}
	if src.Paths.CacheFile != "" {
		dst.Paths.CacheFile = src.Paths.CacheFile
	}
	if src.Paths.PromptsFile != "" {
		dst.Paths.PromptsFile = src.Paths.PromptsFile
	}
	if src.Paths.SessionLogDir != "" {
		dst.Paths.SessionLogDir = src.Paths.SessionLogDir
	}

	// Provider
	if src.Provider.Name != "" {
		dst.Provider.Name = src.Provider.Name
	}
	if src.Provider.Project != "" {
		dst.Provider.Project = src.Provider.Project
	}
	if src.Provider.Location != "" {
		dst.Provider.Location = src.Provider.Location
	}
	if src.Provider.Model != "" {
		dst.Provider.Model = src.Provider.Model
	}
	if src.Provider.ContextWindow != 0 {
		dst.Provider.ContextWindow = src.Provider.ContextWindow
	}

	// Batch
	if src.Batch.Workers != 0 {
		dst.Batch.Workers = src.Batch.Workers
	}
	if src.Batch.MaxAttempts != 0 {
		dst.Batch.MaxAttempts = src.Batch.MaxAttempts
	}
	if src.Batch.Backoff != 0 {
		dst.Batch.Backoff = src.Batch.Backoff
	}
	if src.Batch.TaskTimeout != 0 {
		dst.Batch.TaskTimeout = src.Batch.TaskTimeout
	}
	if src.Batch.RateLimit != 0 {
		dst.Batch.RateLimit = src.Batch.RateLimit
	}
	if src.Batch.Burst != 0 {
		dst.Batch.Burst = src.Batch.Burst
	}

	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.Watch != nil {
		dst.Server.Watch = src.Server.Watch
	}
}

func boolPtr(b bool) *bool {
	return &b
}

package projectconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable ApplyEnv reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SITROOM_PROVIDER", "SITROOM_PROJECT", "GOOGLE_CLOUD_PROJECT", "SITROOM_LOCATION",
		"GOOGLE_CLOUD_LOCATION", "SITROOM_MODEL", "SITROOM_DATA_DIR", "SITROOM_CACHE_FILE", "SITROOM_WORKERS",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.Equal(t, DefaultTranscripts, cfg.Paths.Transcripts)
	assert.Equal(t, "intelligence_analysis.json", cfg.Paths.CacheFile)
	assert.Equal(t, "prompts/advisor_prompts.json", cfg.Paths.PromptsFile)

	assert.Equal(t, "vertex", cfg.Provider.Name)
	assert.Equal(t, "ai-wargamer", cfg.Provider.Project)
	assert.Equal(t, "us-central1", cfg.Provider.Location)
	assert.Equal(t, 1_048_576, cfg.Provider.ContextTokens(), "known window of the default model")

	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, 2, cfg.Batch.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Batch.Backoff)
	assert.Equal(t, 5*time.Minute, cfg.Batch.TaskTimeout)
	assert.Zero(t, cfg.Batch.RateLimit)

	assert.Equal(t, 8501, cfg.Server.Port)
	assert.True(t, cfg.WatchEnabled())
	require.NoError(t, cfg.Validate())
}

func TestNew_DefaultTranscriptsNotShared(t *testing.T) {
	cfg := New()
	cfg.Paths.Transcripts[0] = "changed.json"
	assert.Equal(t, "the_wargame_s2e1_transcript_cleaned.json", DefaultTranscripts[0])
}

func TestLoad_FullConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
paths:
  data_dir: transcripts
  transcripts: [ep1.json, /abs/ep2.json]
  cache_file: out/cache.json
provider:
  name: mock
  model: test-model
  context_window: 32000
batch:
  workers: 8
  max_attempts: 3
  backoff: 500ms
  task_timeout: 1m
  rate_limit: 2.5
  burst: 3
server:
  port: 9000
  watch: false
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Provider.Name)
	assert.Equal(t, "test-model", cfg.Provider.Model)
	assert.Equal(t, 32000, cfg.Provider.ContextTokens())
	assert.Equal(t, "ai-wargamer", cfg.Provider.Project, "unset fields keep defaults")
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, 3, cfg.Batch.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Batch.Backoff)
	assert.Equal(t, time.Minute, cfg.Batch.TaskTimeout)
	assert.Equal(t, 2.5, cfg.Batch.RateLimit)
	assert.Equal(t, 3, cfg.Batch.Burst)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.WatchEnabled())

	assert.Equal(t, filepath.Join(dir, "out", "cache.json"), cfg.Resolve(cfg.Paths.CacheFile))
	assert.Equal(t, []string{filepath.Join(dir, "transcripts", "ep1.json"), "/abs/ep2.json"}, cfg.TranscriptPaths())
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, cfg.Batch.Workers)
	assert.Equal(t, dir, cfg.Dir())
}

func TestLoad_WalksUp(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, root, FileName, "provider:\n  name: copilot\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cfg, err := Load(nested)
	require.NoError(t, err)
	assert.Equal(t, "copilot", cfg.Provider.Name)
	assert.Equal(t, root, cfg.Dir())
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, FileName, "batch: [not, a, map")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestLoad_DotEnvAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, FileName, "provider:\n  name: mock\n")
	writeFile(t, dir, ".env", "SITROOM_MODEL=from-dotenv\n")
	// godotenv never overrides a variable that is already set, even to "".
	require.NoError(t, os.Unsetenv("SITROOM_MODEL"))
	t.Setenv("SITROOM_WORKERS", "6")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "other-project")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Provider.Model)
	assert.Equal(t, 6, cfg.Batch.Workers)
	assert.Equal(t, "other-project", cfg.Provider.Project)
}

func TestApplyEnv_BadWorkers(t *testing.T) {
	cfg := New()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "SITROOM_WORKERS" {
			return "many", true
		}
		return "", false
	})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProjectConfig)
	}{
		{name: "unknown provider", mutate: func(c *ProjectConfig) { c.Provider.Name = "openai" }},
		{name: "zero workers", mutate: func(c *ProjectConfig) { c.Batch.Workers = 0 }},
		{name: "zero attempts", mutate: func(c *ProjectConfig) { c.Batch.MaxAttempts = 0 }},
		{name: "negative backoff", mutate: func(c *ProjectConfig) { c.Batch.Backoff = -time.Second }},
		{name: "negative context window", mutate: func(c *ProjectConfig) { c.Provider.ContextWindow = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

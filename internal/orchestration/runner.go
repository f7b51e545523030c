// Package orchestration runs the catalog of generation tasks against a
// provider under a bounded worker pool.
package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aiwargamer/sitroom/internal/execution"
	"github.com/aiwargamer/sitroom/internal/metrics"
	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/projectconfig"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const defaultWorkers = 4

// BatchRunner executes generation tasks concurrently and collects one result per task.
type BatchRunner struct {
	cfg       projectconfig.BatchConfig
	generator execution.Generator

	provider string
	modelID  string
	runID    string
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventBatchStart    EventType = "batch_start"
	EventBatchComplete EventType = "batch_complete"
	EventTaskStart     EventType = "task_start"
	EventTaskRetry     EventType = "task_retry"
	EventTaskComplete  EventType = "task_complete"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType EventType
	RunID     string
	TaskKey   string
	// Completed counts finished tasks. It only increases within a run and
	// is set on task_complete and batch_complete events.
	Completed   int
	Total       int
	Attempt     int
	MaxAttempts int
	Status      models.Status
	DurationMs  int64
	Error       string
}

// RunnerOption configures a BatchRunner.
type RunnerOption func(*BatchRunner)

// WithProvider records the provider and model in run outcomes.
func WithProvider(provider, modelID string) RunnerOption {
	return func(r *BatchRunner) {
		r.provider = provider
		r.modelID = modelID
	}
}

// WithRunID fixes the run ID instead of generating one, so callers can name
// artifacts such as the run log before the run starts.
func WithRunID(id string) RunnerOption {
	return func(r *BatchRunner) {
		r.runID = id
	}
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RunnerOption {
	return func(r *BatchRunner) {
		r.sleep = sleep
	}
}

// NewBatchRunner creates a runner. A positive cfg.RateLimit caps provider
// requests per second across all workers.
func NewBatchRunner(cfg projectconfig.BatchConfig, generator execution.Generator, opts ...RunnerOption) *BatchRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	r := &BatchRunner{
		cfg:       cfg,
		generator: generator,
		sleep:     sleepContext,
		now:       time.Now,
		listeners: []ProgressListener{},
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.Workers
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *BatchRunner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *BatchRunner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes every task and returns an outcome holding exactly one result
// per task. Task failures never fail the run: a task that exhausts its
// attempts gets a failure placeholder as its content. Run only returns an
// error for invalid input, such as two tasks sharing a cache key.
func (r *BatchRunner) Run(ctx context.Context, tasks []models.GenerationTask, blob string) (*models.RunOutcome, error) {
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		key := t.ID.CacheKey()
		if seen[key] {
			return nil, fmt.Errorf("duplicate task %s", key)
		}
		seen[key] = true
	}

	runID := r.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	start := r.now()
	total := len(tasks)

	slog.Info("Starting batch run", "run_id", runID, "tasks", total, "workers", r.cfg.Workers, "max_attempts", r.cfg.MaxAttempts)

	r.notifyProgress(ProgressEvent{
		EventType:   EventBatchStart,
		RunID:       runID,
		Total:       total,
		MaxAttempts: r.cfg.MaxAttempts,
	})

	var (
		mu        sync.Mutex
		results   = make(map[string]models.TaskResult, total)
		completed int
	)

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	for _, task := range tasks {
		g.Go(func() error {
			key := task.ID.CacheKey()

			r.notifyProgress(ProgressEvent{
				EventType:   EventTaskStart,
				RunID:       runID,
				TaskKey:     key,
				Total:       total,
				MaxAttempts: r.cfg.MaxAttempts,
			})

			result := r.runTask(ctx, runID, task, blob, total)
			metrics.RecordTask(string(task.ID.Kind), string(result.Status), time.Duration(result.DurationMs)*time.Millisecond)

			// notifying under the lock keeps Completed monotonic for listeners
			mu.Lock()
			defer mu.Unlock()
			results[key] = result
			completed++

			r.notifyProgress(ProgressEvent{
				EventType:   EventTaskComplete,
				RunID:       runID,
				TaskKey:     key,
				Completed:   completed,
				Total:       total,
				Attempt:     result.Attempts,
				MaxAttempts: r.cfg.MaxAttempts,
				Status:      result.Status,
				DurationMs:  result.DurationMs,
				Error:       result.ErrorMsg,
			})
			return nil
		})
	}

	// workers never return errors
	_ = g.Wait()

	outcome := &models.RunOutcome{
		RunID:     runID,
		Timestamp: start,
		Setup: models.RunSetup{
			Provider:    r.provider,
			ModelID:     r.modelID,
			Workers:     r.cfg.Workers,
			MaxAttempts: r.cfg.MaxAttempts,
			ContextSize: len(blob),
		},
		Results: results,
	}
	outcome.Digest = buildDigest(results, r.now().Sub(start))

	metrics.RecordBatchRun()
	slog.Info("Batch run complete", "run_id", runID,
		"succeeded", outcome.Digest.Succeeded, "failed", outcome.Digest.Failed, "duration_ms", outcome.Digest.DurationMs)

	r.notifyProgress(ProgressEvent{
		EventType:  EventBatchComplete,
		RunID:      runID,
		Completed:  completed,
		Total:      total,
		DurationMs: outcome.Digest.DurationMs,
	})

	return outcome, nil
}

// runTask makes up to MaxAttempts provider calls, sleeping the backoff
// interval between failed attempts.
func (r *BatchRunner) runTask(ctx context.Context, runID string, task models.GenerationTask, blob string, total int) models.TaskResult {
	key := task.ID.CacheKey()
	start := r.now()

	req := &execution.GenerateRequest{
		SystemInstruction: task.SystemInstruction,
		Prompt:            BuildPrompt(task, blob),
		Timeout:           r.cfg.TaskTimeout,
	}
	if task.MaxOutputWords > 0 {
		// roughly two tokens per word leaves room for markdown
		req.MaxOutputTokens = task.MaxOutputWords * 2
	}

	result := models.TaskResult{
		ID:       task.ID,
		CacheKey: key,
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			r.notifyProgress(ProgressEvent{
				EventType:   EventTaskRetry,
				RunID:       runID,
				TaskKey:     key,
				Total:       total,
				Attempt:     attempt,
				MaxAttempts: r.cfg.MaxAttempts,
				Error:       lastErr.Error(),
			})
			if err := r.sleep(ctx, r.cfg.Backoff); err != nil {
				lastErr = err
				break
			}
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		result.Attempts = attempt

		done := metrics.TrackInFlight()
		resp, err := r.generator.Generate(ctx, req)
		done()
		if err == nil && resp == nil {
			err = execution.ErrEmptyResponse
		}
		metrics.RecordAttempt(err == nil)

		if err == nil {
			result.Content = resp.Text
			result.Status = models.StatusSucceeded
			result.DurationMs = r.now().Sub(start).Milliseconds()
			slog.Info("Generated", "key", key, "attempt", attempt)
			return result
		}

		lastErr = err
		slog.Warn("Generation attempt failed", "key", key, "attempt", attempt, "max_attempts", r.cfg.MaxAttempts, "error", err)
	}

	result.Status = models.StatusFailed
	result.ErrorMsg = lastErr.Error()
	result.Content = FailurePlaceholder(lastErr)
	result.DurationMs = r.now().Sub(start).Milliseconds()
	slog.Error("Generation failed", "key", key, "attempts", result.Attempts, "error", lastErr)
	return result
}

func buildDigest(results map[string]models.TaskResult, elapsed time.Duration) models.RunDigest {
	digest := models.RunDigest{
		TotalTasks: len(results),
		DurationMs: elapsed.Milliseconds(),
	}

	durations := make([]int64, 0, len(results))
	for _, res := range results {
		digest.Attempts += res.Attempts
		if res.Status == models.StatusSucceeded {
			digest.Succeeded++
		} else {
			digest.Failed++
		}
		durations = append(durations, res.DurationMs)
	}

	summary := metrics.Summarize(durations)
	digest.MeanTaskMs = summary.MeanMs
	digest.StdDevTaskMs = summary.StdDevMs
	digest.MedianTaskMs = summary.MedianMs
	digest.MaxTaskMs = summary.MaxMs
	return digest
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

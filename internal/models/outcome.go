package models

import (
	"sort"
	"time"
)

// Status represents the outcome status of a task.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// TaskResult is the outcome of one task within a run.
type TaskResult struct {
	ID         TaskID `json:"id"`
	CacheKey   string `json:"cache_key"`
	Content    string `json:"content"`
	Status     Status `json:"status"`
	Attempts   int    `json:"attempts"`
	ErrorMsg   string `json:"error_msg,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// RunOutcome is the complete result of a batch run.
type RunOutcome struct {
	RunID     string                `json:"run_id"`
	Timestamp time.Time             `json:"timestamp"`
	Setup     RunSetup              `json:"config"`
	Digest    RunDigest             `json:"summary"`
	Results   map[string]TaskResult `json:"results"`
}

type RunSetup struct {
	Provider    string `json:"provider"`
	ModelID     string `json:"model_id"`
	Workers     int    `json:"workers"`
	MaxAttempts int    `json:"max_attempts"`
	ContextSize int    `json:"context_chars"`
}

type RunDigest struct {
	TotalTasks int   `json:"total_tasks"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	Attempts   int   `json:"attempts"`
	DurationMs int64 `json:"duration_ms"`

	// Per-task wall time spread.
	MeanTaskMs   float64 `json:"mean_task_ms"`
	StdDevTaskMs float64 `json:"stddev_task_ms"`
	MedianTaskMs float64 `json:"median_task_ms"`
	MaxTaskMs    int64   `json:"max_task_ms"`
}

// PartialFailure reports whether at least one task ended with a placeholder.
func (o *RunOutcome) PartialFailure() bool {
	return o.Digest.Failed > 0
}

// Contents flattens the results into the cache mapping of key to content.
func (o *RunOutcome) Contents() map[string]string {
	m := make(map[string]string, len(o.Results))
	for k, r := range o.Results {
		m[k] = r.Content
	}
	return m
}

// Keys returns the result keys in sorted order.
func (o *RunOutcome) Keys() []string {
	keys := make([]string, 0, len(o.Results))
	for k := range o.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

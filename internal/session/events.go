package session

import "time"

// EventType identifies the kind of run event.
type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventRunEnd       EventType = "run_complete"
	EventTaskStart    EventType = "task_start"
	EventTaskRetry    EventType = "task_retry"
	EventTaskComplete EventType = "task_complete"
	EventCacheWrite   EventType = "cache_write"
	EventError        EventType = "error"
)

// Event is a single timestamped entry in a run log.
type Event struct {
	// Seq is the 1-based position of the event in its run log, set by JSONLogger.
	Seq       int            `json:"seq,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Data:      data,
	}
}

// RunStartData returns event data for a run start.
func RunStartData(runID, provider, model string, taskCount int) map[string]any {
	return map[string]any{
		"run_id":     runID,
		"provider":   provider,
		"model":      model,
		"task_count": taskCount,
	}
}

// RunCompleteData returns event data for a run end.
func RunCompleteData(total, succeeded, failed, attempts int, durationMs int64) map[string]any {
	return map[string]any{
		"total_tasks": total,
		"succeeded":   succeeded,
		"failed":      failed,
		"attempts":    attempts,
		"duration_ms": durationMs,
	}
}

// TaskStartData returns event data for a task start.
func TaskStartData(key string, taskNum, totalTasks int) map[string]any {
	return map[string]any{
		"task_key":    key,
		"task_num":    taskNum,
		"total_tasks": totalTasks,
	}
}

// TaskRetryData returns event data for a retried attempt.
func TaskRetryData(key string, attempt, maxAttempts int, lastError string) map[string]any {
	return map[string]any{
		"task_key":     key,
		"attempt":      attempt,
		"max_attempts": maxAttempts,
		"last_error":   lastError,
	}
}

// TaskCompleteData returns event data for a task completion.
func TaskCompleteData(key, status string, attempts int, durationMs int64) map[string]any {
	return map[string]any{
		"task_key":    key,
		"status":      status,
		"attempts":    attempts,
		"duration_ms": durationMs,
	}
}

// CacheWriteData returns event data for a cache save.
func CacheWriteData(path string, keys int) map[string]any {
	return map[string]any{
		"path": path,
		"keys": keys,
	}
}

// ErrorData returns event data for an error.
func ErrorData(message string, details map[string]any) map[string]any {
	d := map[string]any{
		"message": message,
	}
	for k, v := range details {
		d[k] = v
	}
	return d
}

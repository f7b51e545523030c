package session

import (
	"log/slog"
	"sync"

	"github.com/aiwargamer/sitroom/internal/orchestration"
)

// Recorder returns a progress listener that writes batch runner events to l.
// Write failures are logged and otherwise ignored. The run_complete event is
// left to the caller, which holds the final outcome.
func Recorder(l Logger, provider, model string) orchestration.ProgressListener {
	var (
		mu      sync.Mutex
		started int
	)
	return func(pe orchestration.ProgressEvent) {
		var ev Event
		switch pe.EventType {
		case orchestration.EventBatchStart:
			ev = NewEvent(EventRunStart, RunStartData(pe.RunID, provider, model, pe.Total))
		case orchestration.EventTaskStart:
			mu.Lock()
			started++
			num := started
			mu.Unlock()
			ev = NewEvent(EventTaskStart, TaskStartData(pe.TaskKey, num, pe.Total))
		case orchestration.EventTaskRetry:
			ev = NewEvent(EventTaskRetry, TaskRetryData(pe.TaskKey, pe.Attempt, pe.MaxAttempts, pe.Error))
		case orchestration.EventTaskComplete:
			ev = NewEvent(EventTaskComplete, TaskCompleteData(pe.TaskKey, string(pe.Status), pe.Attempt, pe.DurationMs))
			if pe.Error != "" {
				ev.Data["error"] = pe.Error
			}
		default:
			return
		}
		if err := l.Log(ev); err != nil {
			slog.Warn("Failed to write run event", "type", ev.Type, "error", err)
		}
	}
}

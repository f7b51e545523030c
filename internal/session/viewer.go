package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SessionFile represents a run log file on disk.
type SessionFile struct {
	Path      string
	Name      string
	Size      int64
	ModTime   time.Time
	NumEvents int
}

// ListSessions finds run log files in dir, newest first.
func ListSessions(dir string) ([]SessionFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading run log directory: %w", err)
	}

	var files []SessionFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), LogSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, e.Name())
		n, _ := countLines(path) //nolint:errcheck
		files = append(files, SessionFile{
			Path:      path,
			Name:      e.Name(),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			NumEvents: n,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck
	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

// ReadEvents parses all events from a run log. Malformed lines are skipped.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var events []Event
	scanner := bufio.NewScanner(f)
	// Increase buffer for large lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue // skip malformed lines
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading run log: %w", err)
	}
	return events, nil
}

// RenderTimeline writes a human-readable run timeline to w.
//
//nolint:errcheck // display-only writes; errors are not actionable
func RenderTimeline(w io.Writer, events []Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(w, " RUN TIMELINE")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(w)

	start := events[0].Timestamp
	for _, ev := range events {
		elapsed := ev.Timestamp.Sub(start)
		ts := formatDuration(elapsed)

		switch ev.Type {
		case EventRunStart:
			provider, _ := ev.Data["provider"].(string) //nolint:errcheck
			model, _ := ev.Data["model"].(string)       //nolint:errcheck
			taskCount := jsonNumber(ev.Data["task_count"])
			fmt.Fprintf(w, "[%s] 🚀 Run started  provider=%s  model=%s  tasks=%d\n", ts, provider, model, taskCount)

		case EventTaskStart:
			key, _ := ev.Data["task_key"].(string) //nolint:errcheck
			num := jsonNumber(ev.Data["task_num"])
			total := jsonNumber(ev.Data["total_tasks"])
			fmt.Fprintf(w, "[%s] ▶  Task %d/%d: %s\n", ts, num, total, key)

		case EventTaskRetry:
			key, _ := ev.Data["task_key"].(string)      //nolint:errcheck
			lastErr, _ := ev.Data["last_error"].(string) //nolint:errcheck
			attempt := jsonNumber(ev.Data["attempt"])
			maxAttempts := jsonNumber(ev.Data["max_attempts"])
			fmt.Fprintf(w, "[%s] ↻  Retry %s (attempt %d/%d): %s\n", ts, key, attempt, maxAttempts, lastErr)

		case EventTaskComplete:
			key, _ := ev.Data["task_key"].(string)  //nolint:errcheck
			status, _ := ev.Data["status"].(string) //nolint:errcheck
			dur := jsonNumber(ev.Data["duration_ms"])
			icon := "✓"
			if status != "succeeded" {
				icon = "✗"
			}
			fmt.Fprintf(w, "[%s] %s  Task complete: %s [%s] (%dms)\n", ts, icon, key, status, dur)

		case EventCacheWrite:
			path, _ := ev.Data["path"].(string) //nolint:errcheck
			keys := jsonNumber(ev.Data["keys"])
			fmt.Fprintf(w, "[%s] 💾 Cache saved  %s  (%d keys)\n", ts, path, keys)

		case EventError:
			msg, _ := ev.Data["message"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] ❌ Error: %s\n", ts, msg)

		case EventRunEnd:
			total := jsonNumber(ev.Data["total_tasks"])
			succeeded := jsonNumber(ev.Data["succeeded"])
			failed := jsonNumber(ev.Data["failed"])
			dur := jsonNumber(ev.Data["duration_ms"])
			fmt.Fprintf(w, "[%s] 🏁 Run complete  %d/%d succeeded  %d failed  (%dms)\n",
				ts, succeeded, total, failed, dur)

		default:
			fmt.Fprintf(w, "[%s] %s %v\n", ts, ev.Type, ev.Data)
		}
	}
	fmt.Fprintln(w)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%6dms", d.Milliseconds())
	}
	return fmt.Sprintf("%6.1fs", d.Seconds())
}

// jsonNumber extracts a number from a JSON-decoded interface{} (float64 or json.Number).
func jsonNumber(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64() //nolint:errcheck
		return int(i)
	}
	return 0
}

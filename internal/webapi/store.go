package webapi

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aiwargamer/sitroom/internal/cache"
	"github.com/aiwargamer/sitroom/internal/session"
)

// ErrRunNotFound is returned when a run ID does not match any stored run.
var ErrRunNotFound = errors.New("run not found")

// ReportStore provides the report cache to the handlers.
type ReportStore interface {
	// Reports returns the whole mapping. A cache that has not been written yet is empty.
	Reports() (map[string]string, error)
	// Edit overwrites one key.
	Edit(key, value string) error
	// Delete removes one key.
	Delete(key string) error
}

// CacheStore serves reports from a cache.Store. When a watcher is set, reads
// come from its in-memory copy instead of the file.
type CacheStore struct {
	store   *cache.Store
	watcher *cache.Watcher
}

// NewCacheStore creates a ReportStore over store. watcher may be nil.
func NewCacheStore(store *cache.Store, watcher *cache.Watcher) *CacheStore {
	return &CacheStore{store: store, watcher: watcher}
}

func (c *CacheStore) Reports() (map[string]string, error) {
	if c.watcher != nil {
		return c.watcher.Current(), nil
	}
	entries, err := c.store.Load()
	if errors.Is(err, cache.ErrNotFound) {
		return map[string]string{}, nil
	}
	return entries, err
}

func (c *CacheStore) Edit(key, value string) error {
	if err := c.store.Edit(key, value); err != nil {
		return err
	}
	c.refresh()
	return nil
}

func (c *CacheStore) Delete(key string) error {
	if err := c.store.Delete(key); err != nil {
		return err
	}
	c.refresh()
	return nil
}

func (c *CacheStore) refresh() {
	if c.watcher != nil {
		c.watcher.Reload()
	}
}

// RunStore provides access to precompute run logs.
type RunStore interface {
	// ListRuns returns all runs, newest first.
	ListRuns() ([]RunSummary, error)
	// GetRun returns a single run with its events.
	GetRun(id string) (*RunDetail, error)
}

// LogStore reads run event logs from a directory.
type LogStore struct {
	dir string

	mu   sync.Mutex
	runs map[string]*RunDetail
	// mod tracks file size so unchanged logs are not re-read.
	mod map[string]int64
}

// NewLogStore creates a LogStore that reads logs from dir.
func NewLogStore(dir string) *LogStore {
	return &LogStore{
		dir:  dir,
		runs: map[string]*RunDetail{},
		mod:  map[string]int64{},
	}
}

func (ls *LogStore) refresh() error {
	if ls.dir == "" {
		return nil
	}
	files, err := session.ListSessions(ls.dir)
	if err != nil {
		if _, statErr := os.Stat(ls.dir); os.IsNotExist(statErr) {
			return nil
		}
		return err
	}

	for _, f := range files {
		id := runIDFromFile(f.Name)
		if size, ok := ls.mod[id]; ok && size == f.Size {
			continue
		}
		events, err := session.ReadEvents(f.Path)
		if err != nil {
			continue
		}
		detail := summarizeRun(id, events)
		if detail.Timestamp.IsZero() {
			detail.Timestamp = f.ModTime
		}
		ls.runs[id] = detail
		ls.mod[id] = f.Size
	}
	return nil
}

func runIDFromFile(name string) string {
	return strings.TrimSuffix(filepath.Base(name), session.LogSuffix)
}

// summarizeRun folds a run's events into its summary.
func summarizeRun(id string, events []session.Event) *RunDetail {
	d := &RunDetail{RunSummary: RunSummary{ID: id}, Events: events}
	if d.Events == nil {
		d.Events = []session.Event{}
	}
	for _, ev := range events {
		switch ev.Type {
		case session.EventRunStart:
			d.Timestamp = ev.Timestamp
			d.Provider, _ = ev.Data["provider"].(string) //nolint:errcheck
			d.Model, _ = ev.Data["model"].(string)       //nolint:errcheck
			d.TaskCount = int(number(ev.Data["task_count"]))
		case session.EventTaskRetry:
			d.Retries++
		case session.EventTaskComplete:
			if status, _ := ev.Data["status"].(string); status == "succeeded" { //nolint:errcheck
				d.Succeeded++
			} else {
				d.Failed++
			}
		case session.EventRunEnd:
			d.Complete = true
			d.DurationMs = int64(number(ev.Data["duration_ms"]))
		}
	}
	return d
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// ListRuns returns all runs, newest first.
func (ls *LogStore) ListRuns() ([]RunSummary, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := ls.refresh(); err != nil {
		return nil, err
	}

	runs := make([]RunSummary, 0, len(ls.runs))
	for _, d := range ls.runs {
		runs = append(runs, d.RunSummary)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

// GetRun returns a single run with its events.
func (ls *LogStore) GetRun(id string) (*RunDetail, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := ls.refresh(); err != nil {
		return nil, err
	}
	d, ok := ls.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return d, nil
}

var (
	_ ReportStore = (*CacheStore)(nil)
	_ RunStore    = (*LogStore)(nil)
)

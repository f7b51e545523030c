package orchestration

import (
	"fmt"
	"path/filepath"

	"github.com/aiwargamer/sitroom/internal/models"
)

// FilterTasks returns the subset of tasks whose cache key or display name
// matches at least one of the given glob patterns. An empty patterns slice
// returns all tasks unchanged.
func FilterTasks(tasks []models.GenerationTask, patterns []string) ([]models.GenerationTask, error) {
	if len(patterns) == 0 {
		return tasks, nil
	}

	var matched []models.GenerationTask
	for _, t := range tasks {
		ok, err := matchesAny(t, patterns)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// matchesAny reports whether a task's cache key or name matches any pattern.
// Names are compared both as written and in canonical form.
func matchesAny(t models.GenerationTask, patterns []string) (bool, error) {
	candidates := []string{t.ID.CacheKey(), t.ID.Name, models.CanonicalName(t.ID.Name)}
	for _, p := range patterns {
		for _, c := range candidates {
			match, err := filepath.Match(p, c)
			if err != nil {
				return false, fmt.Errorf("invalid task filter pattern %q: %w", p, err)
			}
			if match {
				return true, nil
			}
		}
	}
	return false, nil
}

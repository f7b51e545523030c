package models

import (
	"fmt"
	"regexp"
	"strings"
)

// TaskKind identifies what a generation task produces.
type TaskKind string

const (
	TaskKindReport   TaskKind = "report"
	TaskKindBriefing TaskKind = "briefing"
)

// Valid reports whether k is one of the known task kinds.
func (k TaskKind) Valid() bool {
	return k == TaskKindReport || k == TaskKindBriefing
}

// TaskID identifies a generation task. Names are unique within a kind.
type TaskID struct {
	Kind TaskKind `json:"kind" yaml:"kind"`
	Name string   `json:"name" yaml:"name"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CanonicalName normalizes a display name into the form used in cache keys:
// surrounding space is trimmed and inner whitespace runs become a single "_".
// "Red Teamer" and "Red_Teamer" both map to "Red_Teamer".
func CanonicalName(name string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
}

// CacheKey returns the key the task's result is stored under, e.g. "report_Sitrep"
// or "briefing_Red_Teamer".
func (id TaskID) CacheKey() string {
	return string(id.Kind) + "_" + CanonicalName(id.Name)
}

func (id TaskID) String() string {
	return id.CacheKey()
}

// ParseCacheKey splits a cache key back into its task identity. The returned
// name is in canonical form.
func ParseCacheKey(key string) (TaskID, error) {
	prefix, name, ok := strings.Cut(key, "_")
	if !ok || name == "" {
		return TaskID{}, fmt.Errorf("malformed cache key %q", key)
	}

	kind := TaskKind(prefix)
	if !kind.Valid() {
		return TaskID{}, fmt.Errorf("cache key %q has unknown kind %q", key, prefix)
	}

	return TaskID{Kind: kind, Name: name}, nil
}

// GenerationTask is one named unit of generation work.
type GenerationTask struct {
	ID                TaskID `json:"id"`
	Icon              string `json:"icon,omitempty"`
	SystemInstruction string `json:"system_instruction"`
	// Instruction is the task-specific request placed ahead of the transcript context.
	Instruction    string `json:"instruction"`
	MaxOutputWords int    `json:"max_output_words,omitempty"`
}

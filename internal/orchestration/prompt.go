package orchestration

import (
	"fmt"
	"strings"

	"github.com/aiwargamer/sitroom/internal/models"
)

// EmptyContext stands in for the transcript when no data was loaded, so the
// context section of a prompt is explicitly empty rather than missing.
const EmptyContext = "(no transcript data available)"

// FailurePrefix starts the placeholder content stored for a task whose
// attempts were all exhausted.
const FailurePrefix = "Generation Failed: "

// BuildPrompt combines a task's instruction with the transcript context.
func BuildPrompt(task models.GenerationTask, blob string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(task.Instruction))
	if task.MaxOutputWords > 0 {
		fmt.Fprintf(&sb, "\n\nKeep the response under %d words.", task.MaxOutputWords)
	}
	sb.WriteString("\n\nTRANSCRIPT CONTEXT:\n")
	if strings.TrimSpace(blob) == "" {
		sb.WriteString(EmptyContext)
	} else {
		sb.WriteString(blob)
	}
	return sb.String()
}

// FailurePlaceholder is the content recorded for a task that never succeeded.
func FailurePlaceholder(err error) string {
	return FailurePrefix + err.Error()
}

// IsFailurePlaceholder reports whether cached content is a failure placeholder.
func IsFailurePlaceholder(content string) bool {
	return strings.HasPrefix(content, FailurePrefix)
}

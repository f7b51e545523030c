package utils

import (
	"context"
	"log/slog"

	copilot "github.com/github/copilot-sdk/go"
)

// CopilotEventLogger returns a copilot session handler that mirrors events
// to slog at debug level, tagged with the conversation they belong to.
// Streaming deltas are dropped; the final message carries the same text.
func CopilotEventLogger(conversationID string) func(copilot.SessionEvent) {
	return func(event copilot.SessionEvent) {
		if event.Type == copilot.AssistantMessageDelta {
			return
		}
		if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			return
		}

		attrs := []any{"type", event.Type}
		if conversationID != "" {
			attrs = append(attrs, "conversation", conversationID)
		}
		attrs = addIf(attrs, "chars", lenOf(event.Data.Content))
		attrs = addIf(attrs, "message", event.Data.Message)
		attrs = addIf(attrs, "reasoningText", event.Data.ReasoningText)

		slog.Debug("Copilot event", attrs...)
	}
}

func lenOf(s *string) *int {
	if s == nil {
		return nil
	}
	n := len(*s)
	return &n
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name, *v)
	}
	return attrs
}

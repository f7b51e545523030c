package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureDefault(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	old := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(old)
	})

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})))
	return &buf
}

func TestCopilotEventLoggerDebugDisabled(t *testing.T) {
	buf := captureDefault(t, slog.LevelInfo)

	CopilotEventLogger("conv-1")(copilot.SessionEvent{Type: copilot.AssistantMessage})
	assert.Equal(t, 0, buf.Len())
}

func TestCopilotEventLoggerDebugEnabled(t *testing.T) {
	buf := captureDefault(t, slog.LevelDebug)

	content := "## Sitrep"
	reasoning := "reading the transcript"
	CopilotEventLogger("conv-1")(copilot.SessionEvent{
		Type: copilot.AssistantMessage,
		Data: copilot.Data{
			Content:       &content,
			ReasoningText: &reasoning,
		},
	})

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "Copilot event", logEntry["msg"])
	assert.Equal(t, "conv-1", logEntry["conversation"])
	assert.Equal(t, float64(len(content)), logEntry["chars"])
	assert.Equal(t, reasoning, logEntry["reasoningText"])
	assert.NotContains(t, logEntry, "message")
}

func TestCopilotEventLoggerSkipsDeltas(t *testing.T) {
	buf := captureDefault(t, slog.LevelDebug)

	delta := "Sit"
	CopilotEventLogger("")(copilot.SessionEvent{Type: copilot.AssistantMessageDelta, Data: copilot.Data{Content: &delta}})
	assert.Equal(t, 0, buf.Len())
}

func TestCopilotEventLoggerOneShot(t *testing.T) {
	buf := captureDefault(t, slog.LevelDebug)

	msg := "quota exceeded"
	CopilotEventLogger("")(copilot.SessionEvent{Type: copilot.SessionError, Data: copilot.Data{Message: &msg}})

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.NotContains(t, logEntry, "conversation")
	assert.Equal(t, msg, logEntry["message"])
}

func TestAddIf(t *testing.T) {
	attrs := []any{"existing", "value"}

	result := addIf(attrs, "missing", (*int)(nil))
	assert.Equal(t, attrs, result)

	v := 7
	result = addIf(attrs, "number", &v)
	assert.Equal(t, []any{"existing", "value", "number", 7}, result)
}

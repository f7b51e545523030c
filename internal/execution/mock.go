package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockGenerator returns canned text without calling any remote service. It
// keeps a per-conversation turn count so chat flows behave like a real provider.
type MockGenerator struct {
	modelID string
	delay   time.Duration

	mu    sync.Mutex
	turns map[string]int
}

// NewMockGenerator creates a new mock generator
func NewMockGenerator(modelID string) *MockGenerator {
	return &MockGenerator{
		modelID: modelID,
		turns:   map[string]int{},
	}
}

// WithDelay makes every call take at least d, honoring cancellation.
func (m *MockGenerator) WithDelay(d time.Duration) *MockGenerator {
	m.delay = d
	return m
}

func (m *MockGenerator) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to MockGenerator.Generate")
	}

	start := time.Now()

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, newGenerationError("mock", ctx.Err())
		case <-time.After(m.delay):
		}
	}

	var text string
	if req.ConversationID == "" {
		text = fmt.Sprintf("# [MOCK REPORT]\n\n%s\n\n_Generated by the mock provider from a %d character prompt._",
			firstLine(req.SystemInstruction), len(req.Prompt))
	} else {
		m.mu.Lock()
		m.turns[req.ConversationID]++
		turn := m.turns[req.ConversationID]
		m.mu.Unlock()

		text = fmt.Sprintf("**[MOCK RESPONSE]** (turn %d)\n\nYour query (%q) is understood. The mock provider does not call a model.",
			turn, lastLine(req.Prompt))
	}

	return &GenerateResponse{
		Text:       text,
		ModelID:    m.modelID,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Turns reports how many calls a conversation has made.
func (m *MockGenerator) Turns(conversationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns[conversationID]
}

func (m *MockGenerator) Forget(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, conversationID)
}

func (m *MockGenerator) Shutdown(ctx context.Context) error {
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

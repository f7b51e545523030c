package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/aiwargamer/sitroom/internal/utils"
)

const providerCopilot = "copilot"

// CopilotGenerator generates text through the GitHub Copilot SDK.
type CopilotGenerator struct {
	defaultModelID string

	client copilotClient

	startOnce sync.Once
	startErr  error

	// conversations maps a conversation ID to the Copilot session that holds its turns.
	conversationsMu sync.Mutex
	conversations   map[string]string
}

// CopilotGeneratorBuilder builds a CopilotGenerator with options
type CopilotGeneratorBuilder struct {
	generator *CopilotGenerator
}

type CopilotGeneratorBuilderOptions struct {
	NewCopilotClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// NewCopilotGeneratorBuilder creates a builder for CopilotGenerator
//   - defaultModelID - used if the request does not name a model. Can be blank, which means the copilot
//     CLI will choose its own fallback model.
func NewCopilotGeneratorBuilder(defaultModelID string, options *CopilotGeneratorBuilderOptions) *CopilotGeneratorBuilder {
	var client copilotClient

	copilotOptions := &copilot.ClientOptions{
		LogLevel:  "error",
		AutoStart: copilot.Bool(false),
	}

	if options == nil || options.NewCopilotClient == nil {
		client = newCopilotClient(copilotOptions)
	} else {
		client = options.NewCopilotClient(copilotOptions)
	}

	return &CopilotGeneratorBuilder{
		generator: &CopilotGenerator{
			defaultModelID: defaultModelID,
			client:         client,
			conversations:  map[string]string{},
		},
	}
}

func (b *CopilotGeneratorBuilder) Build() *CopilotGenerator {
	return b.generator
}

// Generate sends one prompt through a Copilot session. Requests that carry a
// ConversationID resume the session created by that conversation's first call.
func (g *CopilotGenerator) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to CopilotGenerator.Generate")
	}

	g.startOnce.Do(func() {
		// copilot client has an 'autostart' feature, but it runs into issues
		// when it tries to autostart from separate goroutines.
		g.startErr = g.client.Start(ctx)
	})

	if g.startErr != nil {
		return nil, newGenerationError(providerCopilot, fmt.Errorf("copilot failed to start: %w", g.startErr))
	}

	modelID := g.defaultModelID
	if req.ModelID != "" {
		modelID = req.ModelID
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()

	session, resumed, err := g.openSession(ctx, req.ConversationID, modelID)
	if err != nil {
		return nil, newGenerationError(providerCopilot, err)
	}

	eventsCollector := NewSessionEventsCollector()

	unsubscribe := session.On(eventsCollector.On)
	defer unsubscribe()

	unsubscribe = session.On(utils.CopilotEventLogger(req.ConversationID))
	defer unsubscribe()

	prompt := req.Prompt
	if !resumed {
		prompt = buildCopilotPrompt(req.SystemInstruction, req.Prompt)
	}

	final, err := session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: prompt,
	})

	if err != nil {
		return nil, newGenerationError(providerCopilot, err)
	}

	if msg := eventsCollector.ErrorMessage(); msg != "" {
		return nil, newGenerationError(providerCopilot, errors.New(msg))
	}

	text := eventsCollector.Output()
	if final != nil && final.Data.Content != nil {
		text = *final.Data.Content
	}

	if strings.TrimSpace(text) == "" {
		return nil, newGenerationError(providerCopilot, ErrEmptyResponse)
	}

	if req.ConversationID != "" && !resumed {
		g.conversationsMu.Lock()
		g.conversations[req.ConversationID] = session.SessionID()
		g.conversationsMu.Unlock()
	}

	return &GenerateResponse{
		Text:       text,
		ModelID:    modelID,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (g *CopilotGenerator) openSession(ctx context.Context, conversationID, modelID string) (session copilotSession, resumed bool, err error) {
	var sessionID string
	if conversationID != "" {
		g.conversationsMu.Lock()
		sessionID = g.conversations[conversationID]
		g.conversationsMu.Unlock()
	}

	if sessionID == "" {
		session, err = g.client.CreateSession(ctx, &copilot.SessionConfig{
			Model:               modelID,
			OnPermissionRequest: denyAllTools,
		})

		if err != nil {
			return nil, false, fmt.Errorf("failed to create session: %w", err)
		}
		return session, false, nil
	}

	session, err = g.client.ResumeSessionWithOptions(ctx, sessionID, &copilot.ResumeSessionConfig{
		Model:               modelID,
		OnPermissionRequest: denyAllTools,
	})

	if err != nil {
		return nil, false, fmt.Errorf("failed to resume session (%s): %w", sessionID, err)
	}
	return session, true, nil
}

// Forget drops the session mapping for a conversation.
func (g *CopilotGenerator) Forget(conversationID string) {
	g.conversationsMu.Lock()
	defer g.conversationsMu.Unlock()
	delete(g.conversations, conversationID)
}

// Shutdown stops the Copilot client.
func (g *CopilotGenerator) Shutdown(ctx context.Context) error {
	if err := g.client.Stop(); err != nil {
		// Log but continue cleanup
		slog.Info("failed to stop client", "error", err)
	}
	return nil
}

// buildCopilotPrompt folds the system instruction into the opening message,
// since a session carries it forward to later turns.
func buildCopilotPrompt(systemInstruction, prompt string) string {
	if systemInstruction == "" {
		return prompt
	}

	var sb strings.Builder
	sb.WriteString("## Instructions\n")
	sb.WriteString(systemInstruction)
	sb.WriteString("\n\n## Request\n")
	sb.WriteString(prompt)
	return sb.String()
}

// denyAllTools refuses every tool call; generation here is text-only.
func denyAllTools(request copilot.PermissionRequest, invocation copilot.PermissionInvocation) (copilot.PermissionRequestResult, error) {
	return copilot.PermissionRequestResult{Kind: "denied-by-rules"}, nil
}

package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

const providerVertex = "vertex"

// genaiBackend is the part of [*genai.Client] the generator uses.
type genaiBackend interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	CreateChat(ctx context.Context, model string, config *genai.GenerateContentConfig) (genaiChat, error)
}

// genaiChat is the part of [*genai.Chat] the generator uses.
type genaiChat interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type sdkGenai struct {
	client *genai.Client
}

func newGenaiBackend(ctx context.Context, config *genai.ClientConfig) (genaiBackend, error) {
	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, err
	}
	return sdkGenai{client: client}, nil
}

func (s sdkGenai) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return s.client.Models.GenerateContent(ctx, model, contents, config)
}

func (s sdkGenai) CreateChat(ctx context.Context, model string, config *genai.GenerateContentConfig) (genaiChat, error) {
	return s.client.Chats.Create(ctx, model, config, nil)
}

// VertexOptions configures a VertexGenerator.
type VertexOptions struct {
	Project  string
	Location string
	ModelID  string

	// NewBackend replaces the genai client constructor.
	NewBackend func(ctx context.Context, config *genai.ClientConfig) (genaiBackend, error)
}

// VertexGenerator generates text with Gemini models on Vertex AI.
type VertexGenerator struct {
	opts VertexOptions

	initOnce sync.Once
	backend  genaiBackend
	initErr  error

	chatsMu sync.Mutex
	chats   map[string]genaiChat
}

// NewVertexGenerator creates a generator. The genai client is created on the
// first call, so constructing a generator never touches credentials.
func NewVertexGenerator(opts VertexOptions) *VertexGenerator {
	if opts.NewBackend == nil {
		opts.NewBackend = newGenaiBackend
	}
	return &VertexGenerator{
		opts:  opts,
		chats: map[string]genaiChat{},
	}
}

// Generate sends one prompt to Vertex AI. Requests with a ConversationID go
// through a chat that keeps every earlier turn of that conversation.
func (g *VertexGenerator) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to VertexGenerator.Generate")
	}

	g.initOnce.Do(func() {
		g.backend, g.initErr = g.opts.NewBackend(ctx, &genai.ClientConfig{
			Project:  g.opts.Project,
			Location: g.opts.Location,
			Backend:  genai.BackendVertexAI,
		})
	})

	if g.initErr != nil {
		return nil, newGenerationError(providerVertex, fmt.Errorf("creating genai client: %w", g.initErr))
	}

	modelID := g.opts.ModelID
	if req.ModelID != "" {
		modelID = req.ModelID
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}

	start := time.Now()

	var resp *genai.GenerateContentResponse
	var err error

	if req.ConversationID == "" {
		resp, err = g.backend.GenerateContent(ctx, modelID, genai.Text(req.Prompt), config)
	} else {
		var chat genaiChat
		chat, err = g.chat(ctx, req.ConversationID, modelID, config)
		if err == nil {
			resp, err = chat.SendMessage(ctx, genai.Part{Text: req.Prompt})
		}
	}

	if err != nil {
		return nil, newGenerationError(providerVertex, err)
	}

	text := ""
	if resp != nil {
		text = resp.Text()
	}
	if strings.TrimSpace(text) == "" {
		return nil, newGenerationError(providerVertex, ErrEmptyResponse)
	}

	return &GenerateResponse{
		Text:       text,
		ModelID:    modelID,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (g *VertexGenerator) chat(ctx context.Context, conversationID, modelID string, config *genai.GenerateContentConfig) (genaiChat, error) {
	g.chatsMu.Lock()
	defer g.chatsMu.Unlock()

	if chat, ok := g.chats[conversationID]; ok {
		return chat, nil
	}

	chat, err := g.backend.CreateChat(ctx, modelID, config)
	if err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	g.chats[conversationID] = chat
	return chat, nil
}

// Forget drops the chat kept for a conversation.
func (g *VertexGenerator) Forget(conversationID string) {
	g.chatsMu.Lock()
	defer g.chatsMu.Unlock()
	delete(g.chats, conversationID)
}

func (g *VertexGenerator) Shutdown(ctx context.Context) error {
	g.chatsMu.Lock()
	defer g.chatsMu.Unlock()
	clear(g.chats)
	return nil
}

package execution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenai struct {
	mu          sync.Mutex
	err         error
	reply       string
	calls       []string
	configs     []*genai.GenerateContentConfig
	chatsOpened int
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(s, genai.RoleModel)}},
	}
}

func (f *fakeGenai) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, model+":"+contents[0].Parts[0].Text)
	f.configs = append(f.configs, config)
	if f.err != nil {
		return nil, f.err
	}
	return textResponse(f.reply), nil
}

func (f *fakeGenai) CreateChat(ctx context.Context, model string, config *genai.GenerateContentConfig) (genaiChat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatsOpened++
	f.configs = append(f.configs, config)
	return &fakeChat{parent: f}, nil
}

type fakeChat struct {
	parent  *fakeGenai
	history []string
}

func (c *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	c.history = append(c.history, parts[0].Text)
	if c.parent.err != nil {
		return nil, c.parent.err
	}
	return textResponse(c.parent.reply), nil
}

func newTestVertexGenerator(backend *fakeGenai, gotConfig **genai.ClientConfig) *VertexGenerator {
	return NewVertexGenerator(VertexOptions{
		Project:  "ai-wargamer",
		Location: "us-central1",
		ModelID:  "gemini-2.5-pro",
		NewBackend: func(ctx context.Context, config *genai.ClientConfig) (genaiBackend, error) {
			if gotConfig != nil {
				*gotConfig = config
			}
			return backend, nil
		},
	})
}

func TestVertexGenerate(t *testing.T) {
	backend := &fakeGenai{reply: "## Sitrep"}
	var clientConfig *genai.ClientConfig
	generator := newTestVertexGenerator(backend, &clientConfig)

	resp, err := generator.Generate(context.Background(), &GenerateRequest{
		SystemInstruction: "analyst",
		Prompt:            "summarize",
		MaxOutputTokens:   256,
	})
	require.NoError(t, err)
	require.Equal(t, "## Sitrep", resp.Text)
	require.Equal(t, "gemini-2.5-pro", resp.ModelID)

	require.Equal(t, "ai-wargamer", clientConfig.Project)
	require.Equal(t, "us-central1", clientConfig.Location)
	require.Equal(t, genai.BackendVertexAI, clientConfig.Backend)

	require.Equal(t, []string{"gemini-2.5-pro:summarize"}, backend.calls)
	require.Equal(t, "analyst", backend.configs[0].SystemInstruction.Parts[0].Text)
	require.EqualValues(t, 256, backend.configs[0].MaxOutputTokens)
}

func TestVertexGenerate_ModelOverride(t *testing.T) {
	backend := &fakeGenai{reply: "ok"}
	generator := newTestVertexGenerator(backend, nil)

	resp, err := generator.Generate(context.Background(), &GenerateRequest{Prompt: "p", ModelID: "gemini-2.5-flash"})
	require.NoError(t, err)
	require.Equal(t, "gemini-2.5-flash", resp.ModelID)
	require.Equal(t, []string{"gemini-2.5-flash:p"}, backend.calls)
}

func TestVertexGenerate_Conversation(t *testing.T) {
	backend := &fakeGenai{reply: "answer"}
	generator := newTestVertexGenerator(backend, nil)

	for _, prompt := range []string{"CONTEXT:\nblob\n\nUSER QUERY:\nq1", "q2"} {
		_, err := generator.Generate(context.Background(), &GenerateRequest{
			SystemInstruction: "persona",
			Prompt:            prompt,
			ConversationID:    "conv-1",
		})
		require.NoError(t, err)
	}

	require.Equal(t, 1, backend.chatsOpened)
	chat := generator.chats["conv-1"].(*fakeChat)
	require.Equal(t, []string{"CONTEXT:\nblob\n\nUSER QUERY:\nq1", "q2"}, chat.history)
	require.Empty(t, backend.calls)

	generator.Forget("conv-1")
	_, err := generator.Generate(context.Background(), &GenerateRequest{Prompt: "q3", ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Equal(t, 2, backend.chatsOpened)
}

func TestVertexGenerate_Errors(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		generator := newTestVertexGenerator(&fakeGenai{err: errors.New("quota exceeded")}, nil)
		_, err := generator.Generate(context.Background(), &GenerateRequest{Prompt: "p"})

		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		require.Equal(t, "vertex", genErr.Provider)
		require.ErrorContains(t, err, "quota exceeded")
	})

	t.Run("empty response", func(t *testing.T) {
		generator := newTestVertexGenerator(&fakeGenai{reply: "  "}, nil)
		_, err := generator.Generate(context.Background(), &GenerateRequest{Prompt: "p"})
		require.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("client creation", func(t *testing.T) {
		calls := 0
		generator := NewVertexGenerator(VertexOptions{
			NewBackend: func(ctx context.Context, config *genai.ClientConfig) (genaiBackend, error) {
				calls++
				return nil, errors.New("no credentials")
			},
		})
		for range 2 {
			_, err := generator.Generate(context.Background(), &GenerateRequest{Prompt: "p"})
			require.ErrorContains(t, err, "no credentials")
		}
		require.Equal(t, 1, calls)
	})
}

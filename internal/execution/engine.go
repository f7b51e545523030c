package execution

import (
	"context"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/generator.go -package=mocks . Generator

// Generator is a text-generation provider: given a system instruction and a
// prompt it returns generated text or fails.
type Generator interface {
	// Generate runs a single blocking generation call.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Shutdown releases provider resources.
	Shutdown(ctx context.Context) error
}

// Forgetter is implemented by generators that keep conversation memory.
type Forgetter interface {
	// Forget drops the provider-side memory for a conversation.
	Forget(conversationID string)
}

// GenerateRequest is one generation call.
type GenerateRequest struct {
	SystemInstruction string
	Prompt            string

	// ConversationID, when set, continues a conversation: the provider keeps
	// prior turns and SystemInstruction only applies to the first call.
	ConversationID string

	// ModelID overrides the generator's default model.
	ModelID string

	// Timeout bounds the call. Zero means no extra bound beyond ctx.
	Timeout time.Duration

	// MaxOutputTokens caps the response length, when the provider supports it.
	MaxOutputTokens int
}

// GenerateResponse is the result of a successful generation call.
type GenerateResponse struct {
	Text       string
	ModelID    string
	DurationMs int64
}

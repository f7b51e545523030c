// Package chat runs per-advisor conversations on top of a Generator.
//
// A session starts UNSTARTED. The first successful send carries the transcript
// context ahead of the user's text and moves the session to ACTIVE; later sends
// carry only the user's text and rely on the provider's conversation memory.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aiwargamer/sitroom/internal/catalog"
	"github.com/aiwargamer/sitroom/internal/execution"
	"github.com/aiwargamer/sitroom/internal/metrics"
	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/orchestration"
	"github.com/google/uuid"
)

var (
	// ErrUnknownAdvisor is returned for advisor names missing from the catalog.
	ErrUnknownAdvisor = errors.New("unknown advisor")

	// ErrEmptyMessage is returned when the user text is blank. Nothing is recorded.
	ErrEmptyMessage = errors.New("message must not be empty")
)

// ErrorTurnPrefix starts the content of an assistant turn that records a failed call.
const ErrorTurnPrefix = "**[LLM ERROR]** "

// State is the lifecycle state of a session.
type State int

const (
	StateUnstarted State = iota
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is one advisor conversation.
type Session struct {
	advisor        catalog.Advisor
	conversationID string
	createdAt      time.Time

	// sendMu serializes sends so a session never has two requests in flight.
	sendMu sync.Mutex

	mu      sync.RWMutex
	state   State
	history []models.ChatTurn
}

// Advisor returns the persona this session talks to.
func (s *Session) Advisor() catalog.Advisor {
	return s.advisor
}

// ID returns the conversation identifier passed to the provider.
func (s *Session) ID() string {
	return s.conversationID
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// History returns a copy of the turns so far, oldest first. Roles strictly
// alternate user, assistant, starting with user.
func (s *Session) History() []models.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatTurn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) append(turn models.ChatTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turn)
}

// Controller owns the sessions of one UI or process lifetime, at most one per advisor.
type Controller struct {
	gen     execution.Generator
	catalog *catalog.Catalog
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout bounds each send. Zero leaves only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithClock sets the time source used for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates a controller for the advisors in cat.
func NewController(cat *catalog.Catalog, gen execution.Generator, opts ...Option) *Controller {
	c := &Controller{
		gen:      gen,
		catalog:  cat,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCreate returns the session for advisor, creating an UNSTARTED one on first use.
// The name may be in display or canonical form.
func (c *Controller) GetOrCreate(advisor string) (*Session, error) {
	a, err := c.catalog.Advisor(advisor)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdvisor, advisor)
	}

	key := models.CanonicalName(a.Name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[key]; ok {
		return s, nil
	}

	s := &Session{
		advisor:        a,
		conversationID: uuid.NewString(),
		createdAt:      c.now(),
		state:          StateUnstarted,
	}
	c.sessions[key] = s
	slog.Debug("Chat session created", "advisor", a.Name, "conversation", s.conversationID)
	return s, nil
}

// Lookup returns the existing session for advisor without creating one.
func (c *Controller) Lookup(advisor string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[models.CanonicalName(advisor)]
	return s, ok
}

// Sessions returns the live sessions ordered by advisor name.
func (c *Controller) Sessions() []*Session {
	c.mu.Lock()
	out := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].advisor.Name < out[j].advisor.Name
	})
	return out
}

// Reset discards the advisor's session and its provider-side memory. The next
// GetOrCreate starts a fresh UNSTARTED session.
func (c *Controller) Reset(advisor string) bool {
	key := models.CanonicalName(advisor)

	c.mu.Lock()
	s, ok := c.sessions[key]
	delete(c.sessions, key)
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.forget(s.conversationID)
	slog.Debug("Chat session reset", "advisor", s.advisor.Name, "conversation", s.conversationID)
	return true
}

// Send forwards one user message and records the exchange. It always appends
// one user turn followed by one assistant turn. When the provider call fails
// the assistant turn holds a formatted error and is marked Failed; the failure
// is not returned as an error.
//
// The context blob is sent only while the session is UNSTARTED. A failed
// opening call leaves the session UNSTARTED, so the next send carries the
// context again.
func (c *Controller) Send(ctx context.Context, s *Session, text, blob string) (models.ChatTurn, error) {
	if s == nil {
		return models.ChatTurn{}, fmt.Errorf("nil session")
	}
	if strings.TrimSpace(text) == "" {
		return models.ChatTurn{}, ErrEmptyMessage
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.append(models.ChatTurn{Role: models.RoleUser, Content: text, Timestamp: c.now()})

	opening := s.State() == StateUnstarted
	prompt := text
	if opening {
		prompt = OpeningMessage(blob, text)
	}

	req := &execution.GenerateRequest{
		SystemInstruction: s.advisor.Prompt,
		Prompt:            prompt,
		ConversationID:    s.conversationID,
		Timeout:           c.timeout,
	}

	resp, err := c.gen.Generate(ctx, req)
	if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
		err = execution.ErrEmptyResponse
	}

	metrics.RecordChatTurn(s.advisor.Name, err == nil)

	if err != nil {
		slog.Warn("Chat turn failed", "advisor", s.advisor.Name, "conversation", s.conversationID, "opening", opening, "error", err)
		if opening {
			// Drop whatever the provider kept so the retried opening starts clean.
			c.forget(s.conversationID)
		}
		turn := models.ChatTurn{
			Role:      models.RoleAssistant,
			Content:   FormatError(err),
			Timestamp: c.now(),
			Failed:    true,
		}
		s.append(turn)
		return turn, nil
	}

	turn := models.ChatTurn{Role: models.RoleAssistant, Content: resp.Text, Timestamp: c.now()}
	s.mu.Lock()
	s.history = append(s.history, turn)
	s.state = StateActive
	s.mu.Unlock()
	return turn, nil
}

func (c *Controller) forget(conversationID string) {
	if f, ok := c.gen.(execution.Forgetter); ok {
		f.Forget(conversationID)
	}
}

// OpeningMessage builds the first message of a session: the transcript context
// followed by the user's query.
func OpeningMessage(blob, text string) string {
	if strings.TrimSpace(blob) == "" {
		blob = orchestration.EmptyContext
	}
	return "CONTEXT:\n" + blob + "\n\nUSER QUERY:\n" + text
}

// FormatError renders a failed call as assistant turn content.
func FormatError(err error) string {
	return fmt.Sprintf("%sAn error occurred while communicating with the AI: %v", ErrorTurnPrefix, err)
}

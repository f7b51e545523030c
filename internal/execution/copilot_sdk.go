package execution

import (
	"context"

	copilot "github.com/github/copilot-sdk/go"
)

//go:generate go run go.uber.org/mock/mockgen -source=copilot_sdk.go -destination=copilot_sdk_mocks_test.go -package=execution

// copilotSession is the part of [*copilot.Session] the generator uses.
type copilotSession interface {
	On(handler copilot.SessionEventHandler) func()
	SendAndWait(ctx context.Context, options copilot.MessageOptions) (*copilot.SessionEvent, error)
	SessionID() string
}

// copilotClient is the part of [*copilot.Client] the generator uses.
type copilotClient interface {
	Start(ctx context.Context) error
	Stop() error
	CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error)
	ResumeSessionWithOptions(ctx context.Context, sessionID string, config *copilot.ResumeSessionConfig) (copilotSession, error)
}

func newCopilotClient(clientOptions *copilot.ClientOptions) copilotClient {
	return sdkClient{inner: copilot.NewClient(clientOptions)}
}

type sdkClient struct {
	inner *copilot.Client
}

func (c sdkClient) Start(ctx context.Context) error { return c.inner.Start(ctx) }

func (c sdkClient) Stop() error { return c.inner.Stop() }

func (c sdkClient) CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error) {
	return wrapSession(c.inner.CreateSession(ctx, config))
}

func (c sdkClient) ResumeSessionWithOptions(ctx context.Context, sessionID string, config *copilot.ResumeSessionConfig) (copilotSession, error) {
	return wrapSession(c.inner.ResumeSessionWithOptions(ctx, sessionID, config))
}

func wrapSession(s *copilot.Session, err error) (copilotSession, error) {
	if err != nil {
		return nil, err
	}
	return sdkSession{inner: s}, nil
}

// sdkSession exists because [copilot.Session.SessionID] is a field, which an
// interface can't express.
type sdkSession struct {
	inner *copilot.Session
}

func (s sdkSession) On(handler copilot.SessionEventHandler) func() { return s.inner.On(handler) }

func (s sdkSession) SendAndWait(ctx context.Context, options copilot.MessageOptions) (*copilot.SessionEvent, error) {
	return s.inner.SendAndWait(ctx, options)
}

func (s sdkSession) SessionID() string { return s.inner.SessionID }

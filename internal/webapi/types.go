package webapi

import (
	"time"

	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/session"
)

// Report statuses.
const (
	StatusReady   = "ready"
	StatusFailed  = "failed"
	StatusMissing = "missing"
)

// ReportSummary is one entry of the report list.
type ReportSummary struct {
	Key    string `json:"key"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Icon   string `json:"icon,omitempty"`
	Status string `json:"status"`
	Chars  int    `json:"chars"`
}

// ReportDetail is a report with its markdown content.
type ReportDetail struct {
	ReportSummary
	Content string `json:"content"`
}

// EditRequest is the body of a manual override.
type EditRequest struct {
	Content *string `json:"content"`
}

// AdvisorResponse describes a chat persona.
type AdvisorResponse struct {
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	BriefingKey string `json:"briefingKey"`
	HasBriefing bool   `json:"hasBriefing"`
	ChatState   string `json:"chatState"`
}

// ChatRequest is the body of a chat message.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatSessionResponse is an advisor conversation.
type ChatSessionResponse struct {
	Advisor        string            `json:"advisor"`
	ConversationID string            `json:"conversationId,omitempty"`
	State          string            `json:"state"`
	Turns          []models.ChatTurn `json:"turns"`
}

// ChatReplyResponse is returned after a message is sent.
type ChatReplyResponse struct {
	Reply   models.ChatTurn     `json:"reply"`
	Session ChatSessionResponse `json:"session"`
}

// RunSummary is one precompute run, read from its event log.
type RunSummary struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	TaskCount  int       `json:"taskCount"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Retries    int       `json:"retries"`
	DurationMs int64     `json:"durationMs"`
	Complete   bool      `json:"complete"`
	Timestamp  time.Time `json:"timestamp"`
}

// RunDetail is a run with its full event list.
type RunDetail struct {
	RunSummary
	Events []session.Event `json:"events"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Reports int    `json:"reports"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

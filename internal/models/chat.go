package models

import "time"

// Role is the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is a single message in an advisor conversation.
type ChatTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// Failed marks an assistant turn that carries an error message instead of a reply.
	Failed bool `json:"failed,omitempty"`
}
